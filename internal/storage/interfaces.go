// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"time"

	"github.com/canonical/teams-service/internal/types"
)

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

	CreateToken(ctx context.Context, t *types.TokenRecord) error
	GetToken(ctx context.Context, id string) (*types.TokenRecord, error)
	ClaimToken(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeUserTokens(ctx context.Context, userID string, purpose types.TokenPurpose, at time.Time) (int64, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)

	CreateTeam(ctx context.Context, title string) (*types.Team, error)
	GetTeam(ctx context.Context, id string) (*types.Team, error)
	LockTeam(ctx context.Context, id string) error
	UpdateTeamTitle(ctx context.Context, id, title string) (*types.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	ListTeamsByUserID(ctx context.Context, userID string) ([]*types.TeamWithRole, error)

	AddMember(ctx context.Context, teamID, userID string, role types.Role) (*types.Membership, error)
	GetMembership(ctx context.Context, teamID, userID string) (*types.Membership, error)
	ListMembers(ctx context.Context, teamID string) ([]*types.Membership, error)
	UpdateMemberRole(ctx context.Context, teamID, userID string, role types.Role) error
	RemoveMember(ctx context.Context, teamID, userID string) error

	CreateInvitation(ctx context.Context, i *types.Invitation) (*types.Invitation, error)
	GetInvitationForUpdate(ctx context.Context, id string) (*types.Invitation, error)
	ListInvitations(ctx context.Context, teamID string, page, size int64) ([]*types.Invitation, error)
	UpdateInvitationStatus(ctx context.Context, id string, status types.InvitationStatus, at time.Time) error
	ExpireInvitations(ctx context.Context, teamID, email string, now time.Time) (int64, error)
}
