// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package user

import (
	"context"
	"net/http"
	"time"

	"github.com/canonical/teams-service/internal/types"
)

type ServiceInterface interface {
	Register(ctx context.Context, req *RegisterRequest) (*types.User, error)
	Login(ctx context.Context, identifier, password, ip string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, id string) (*types.User, error)
	UpdateSettings(ctx context.Context, user *types.User, req *SettingsRequest) (*types.User, error)
	ConfirmEmailChange(ctx context.Context, token string) (*types.User, error)
	UpdateAppearance(ctx context.Context, userID string, appearance types.Appearance) (*types.User, error)
	SendVerification(ctx context.Context, user *types.User) error
	Verify(ctx context.Context, token string) error
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

type StorageInterface interface {
	CreateUser(ctx context.Context, u *types.User) (*types.User, error)
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByLoginOrEmail(ctx context.Context, identifier string) (*types.User, error)
	UpdateUserSettings(ctx context.Context, id string, settings types.UserSettings) (*types.User, error)
	UpdateUserEmail(ctx context.Context, id, email string) error
	SetUserStatus(ctx context.Context, id string, status types.UserStatus) error
	UpdateAppearance(ctx context.Context, id string, appearance types.Appearance) error
	RecordLogin(ctx context.Context, id, ip string, at time.Time) error
}

// TxInterface runs fn in a transaction carried by the context
type TxInterface interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

type AuthenticatorInterface interface {
	Authenticate() func(http.Handler) http.Handler
}

type RateLimiterInterface interface {
	Middleware(scope string, limit int, window time.Duration) func(http.Handler) http.Handler
}
