// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"time"
)

// Timestamps is embedded by every persisted entity
type Timestamps struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type UserStatus int

const (
	UserStatusUnverified UserStatus = 0
	UserStatusVerified   UserStatus = 1
)

func (s UserStatus) String() string {
	if s == UserStatusVerified {
		return "verified"
	}
	return "unverified"
}

type User struct {
	ID           string     `db:"id" json:"id"`
	Login        string     `db:"login" json:"login"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Status       UserStatus `db:"status" json:"status"`
	IsSuperuser  bool       `db:"is_superuser" json:"is_superuser"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	ThemeIsLight bool       `db:"theme_is_light" json:"theme_is_light"`
	MainColorHex string     `db:"main_color_hex" json:"main_color_hex"`
	LastLoginIP  *string    `db:"last_login_ip" json:"-"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`

	Timestamps
}

func (u *User) Verified() bool {
	return u.Status == UserStatusVerified
}

// UserSettings carries a partial update, nil fields are left untouched
type UserSettings struct {
	Login        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

type Appearance struct {
	ThemeIsLight bool
	MainColorHex string
}

type TokenPurpose string

const (
	PurposeAccess      TokenPurpose = "access"
	PurposeRefresh     TokenPurpose = "refresh"
	PurposeVerify      TokenPurpose = "verify"
	PurposeReset       TokenPurpose = "reset"
	PurposeEmailChange TokenPurpose = "email_change"
)

// SingleUse reports whether tokens of this purpose are tracked server side
func (p TokenPurpose) SingleUse() bool {
	switch p {
	case PurposeRefresh, PurposeVerify, PurposeReset, PurposeEmailChange:
		return true
	}
	return false
}

// TokenRecord is the server side state of a single-use token
type TokenRecord struct {
	ID         string       `db:"id"`
	UserID     string       `db:"user_id"`
	Purpose    TokenPurpose `db:"purpose"`
	Payload    string       `db:"payload"`
	ExpiresAt  time.Time    `db:"expires_at"`
	ConsumedAt *time.Time   `db:"consumed_at"`
	CreatedAt  time.Time    `db:"created_at"`
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Rank orders roles, unknown roles rank below member
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r grants everything required grants
func (r Role) AtLeast(required Role) bool {
	return r.Valid() && r.Rank() >= required.Rank()
}

type Team struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`

	Timestamps
}

// TeamWithRole is a team as seen by one of its members
type TeamWithRole struct {
	Team
	Role        Role `db:"role" json:"role"`
	MemberCount int  `db:"member_count" json:"member_count"`
}

type Membership struct {
	ID        string    `db:"id" json:"id"`
	TeamID    string    `db:"team_id" json:"team_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      Role      `db:"role" json:"role"`
	Login     string    `db:"login" json:"login,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationDisabled InvitationStatus = "disabled"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Terminal states never transition again
func (s InvitationStatus) Terminal() bool {
	switch s {
	case InvitationAccepted, InvitationRevoked, InvitationExpired:
		return true
	}
	return false
}

type Invitation struct {
	ID         string           `db:"id" json:"id"`
	TeamID     string           `db:"team_id" json:"team_id"`
	Email      string           `db:"email" json:"email"`
	Role       Role             `db:"role" json:"role"`
	Status     InvitationStatus `db:"status" json:"status"`
	InvitedBy  string           `db:"invited_by" json:"invited_by"`
	ExpiresAt  time.Time        `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`

	Timestamps
}

// EffectiveStatus applies the expiry check at read time, a stored pending or
// disabled invitation past its deadline is expired
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if !i.Status.Terminal() && !now.Before(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

// Token is a validated or freshly issued token, Value is only set on issue
type Token struct {
	Value     string
	ID        string
	Subject   string
	Purpose   TokenPurpose
	Payload   string
	ExpiresAt time.Time
}

type NotificationKind string

const (
	NotificationVerify      NotificationKind = "verify"
	NotificationReset       NotificationKind = "reset"
	NotificationEmailChange NotificationKind = "email_change"
	NotificationInvitation  NotificationKind = "invitation"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationVerify, NotificationReset, NotificationEmailChange, NotificationInvitation:
		return true
	}
	return false
}

type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	Recipient string            `json:"recipient"`
	Token     string            `json:"token"`
	Data      map[string]string `json:"data,omitempty"`
}
