// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package team

import (
	"context"
	"net/http"
	"time"

	"github.com/canonical/teams-service/internal/types"
)

type ServiceInterface interface {
	CreateTeam(ctx context.Context, actor *types.User, title string) (*types.Team, error)
	ListTeams(ctx context.Context, actor *types.User) ([]*types.TeamWithRole, error)
	GetTeam(ctx context.Context, actor *types.User, teamID string) (*TeamDetails, error)
	RenameTeam(ctx context.Context, actor *types.User, teamID, title string) (*types.Team, error)
	DeleteTeam(ctx context.Context, actor *types.User, teamID string) error
	ListMembers(ctx context.Context, actor *types.User, teamID string) ([]*types.Membership, error)
	ChangeRole(ctx context.Context, actor *types.User, teamID, userID string, role types.Role) (*types.Membership, error)
	RemoveMember(ctx context.Context, actor *types.User, teamID, userID string) error
	Leave(ctx context.Context, actor *types.User, teamID string) error
	Invite(ctx context.Context, actor *types.User, teamID, email string, role types.Role, ttl time.Duration) (*types.Invitation, error)
	ListInvitations(ctx context.Context, actor *types.User, teamID string, page, size int64) ([]*types.Invitation, error)
	AcceptInvitation(ctx context.Context, actor *types.User, invitationID string) (*types.Membership, error)
	ToggleInvitation(ctx context.Context, actor *types.User, invitationID string) (*types.Invitation, error)
	RevokeInvitation(ctx context.Context, actor *types.User, invitationID string) error
}

type StorageInterface interface {
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

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

// TxInterface runs fn in a transaction carried by the context
type TxInterface interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

type AuthenticatorInterface interface {
	Authenticate() func(http.Handler) http.Handler
}
