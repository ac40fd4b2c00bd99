// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package user

import (
	"time"
)

type RegisterRequest struct {
	Login     string `json:"login" validate:"required,min=3,max=64,excludesall=@"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// SettingsRequest is a partial update, absent fields are left untouched
type SettingsRequest struct {
	Login           *string `json:"login,omitempty" validate:"omitempty,min=3,max=64,excludesall=@"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password        *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	CurrentPassword *string `json:"current_password,omitempty" validate:"omitempty,max=72"`
	FirstName       *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName        *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

type AppearanceRequest struct {
	ThemeIsLight bool   `json:"theme_is_light"`
	MainColorHex string `json:"main_color_hex" validate:"required,hexcolor6"`
}

type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type PasswordResetSendRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type PasswordResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Session is the token pair handed out on login and refresh
type Session struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Profile is what other users may see of an account
type Profile struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
