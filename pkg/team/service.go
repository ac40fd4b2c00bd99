// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canonical/teams-service/internal/authorization"
	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
	"github.com/canonical/teams-service/pkg/notification"
)

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	storage    StorageInterface
	tx         TxInterface
	authz      authorization.AuthorizerInterface
	dispatcher notification.DispatcherInterface

	invitationLifetime time.Duration
	now                func() time.Time

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// CreateTeam creates the team with actor as its only owner
func (s *Service) CreateTeam(ctx context.Context, actor *types.User, title string) (*types.Team, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.CreateTeam")
	defer span.End()

	if actor == nil {
		return nil, types.ErrUnauthenticated
	}

	var created *types.Team

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		t, err := s.storage.CreateTeam(ctx, strings.TrimSpace(title))
		if err != nil {
			return err
		}

		if _, err := s.storage.AddMember(ctx, t.ID, actor.ID, types.RoleOwner); err != nil {
			return err
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}

	s.logger.Infof("user %s created team %s", actor.ID, created.ID)

	return created, nil
}

func (s *Service) ListTeams(ctx context.Context, actor *types.User) ([]*types.TeamWithRole, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.ListTeams")
	defer span.End()

	if actor == nil {
		return nil, types.ErrUnauthenticated
	}

	return s.storage.ListTeamsByUserID(ctx, actor.ID)
}

func (s *Service) GetTeam(ctx context.Context, actor *types.User, teamID string) (*TeamDetails, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.GetTeam")
	defer span.End()

	m, err := s.authz.Authorize(ctx, actor, teamID, types.RoleMember)
	if err != nil {
		return nil, err
	}

	t, err := s.storage.GetTeam(ctx, teamID)
	if err != nil {
		return nil, translateError(err)
	}

	members, err := s.storage.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	return &TeamDetails{Team: *t, Role: m.Role, Members: members}, nil
}

func (s *Service) RenameTeam(ctx context.Context, actor *types.User, teamID, title string) (*types.Team, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.RenameTeam")
	defer span.End()

	if _, err := s.authz.Authorize(ctx, actor, teamID, types.RoleAdmin); err != nil {
		return nil, err
	}

	t, err := s.storage.UpdateTeamTitle(ctx, teamID, strings.TrimSpace(title))
	if err != nil {
		return nil, translateError(err)
	}

	return t, nil
}

func (s *Service) DeleteTeam(ctx context.Context, actor *types.User, teamID string) error {
	ctx, span := s.tracer.Start(ctx, "team.Service.DeleteTeam")
	defer span.End()

	if _, err := s.authz.Authorize(ctx, actor, teamID, types.RoleOwner); err != nil {
		return err
	}

	if err := s.storage.DeleteTeam(ctx, teamID); err != nil {
		return translateError(err)
	}

	s.logger.Infof("user %s deleted team %s", actor.ID, teamID)

	return nil
}

func (s *Service) ListMembers(ctx context.Context, actor *types.User, teamID string) ([]*types.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.ListMembers")
	defer span.End()

	if _, err := s.authz.Authorize(ctx, actor, teamID, types.RoleMember); err != nil {
		return nil, err
	}

	return s.storage.ListMembers(ctx, teamID)
}

// ChangeRole sets the role of another member. Granting owner transfers
// ownership, the previous owner stays on as admin.
func (s *Service) ChangeRole(ctx context.Context, actor *types.User, teamID, userID string, role types.Role) (*types.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.ChangeRole")
	defer span.End()

	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, types.ErrInvalid)
	}

	var updated *types.Membership

	err := s.withTeamLock(ctx, actor, teamID, types.RoleAdmin, func(ctx context.Context, acting *types.Membership) error {
		if userID == actor.ID {
			s.deny(actor, teamID, "own role change")
			return fmt.Errorf("members can not change their own role: %w", types.ErrForbidden)
		}

		target, err := s.storage.GetMembership(ctx, teamID, userID)
		if err != nil {
			return err
		}

		if target.Role == role {
			updated = target
			return nil
		}

		if target.Role == types.RoleOwner {
			return fmt.Errorf("the owner can only be replaced by transferring ownership: %w", types.ErrConflict)
		}

		if !authorization.CanActOn(acting.Role, target.Role) || !authorization.CanGrant(acting.Role, role) {
			s.deny(actor, teamID, fmt.Sprintf("%s may not make a %s %s", acting.Role, target.Role, role))
			return fmt.Errorf("%s can not grant %s to a %s: %w", acting.Role, role, target.Role, types.ErrForbidden)
		}

		if role == types.RoleOwner {
			// demote first, a team never has two owners
			if err := s.storage.UpdateMemberRole(ctx, teamID, acting.UserID, types.RoleAdmin); err != nil {
				return err
			}
		}

		if err := s.storage.UpdateMemberRole(ctx, teamID, userID, role); err != nil {
			return err
		}

		target.Role = role
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	if role == types.RoleOwner {
		s.logger.Infof("ownership of team %s transferred from %s to %s", teamID, actor.ID, userID)
	}

	return updated, nil
}

// RemoveMember removes another member, leaving is done through Leave
func (s *Service) RemoveMember(ctx context.Context, actor *types.User, teamID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "team.Service.RemoveMember")
	defer span.End()

	return s.withTeamLock(ctx, actor, teamID, types.RoleAdmin, func(ctx context.Context, acting *types.Membership) error {
		if userID == actor.ID {
			return fmt.Errorf("use leave to remove yourself: %w", types.ErrForbidden)
		}

		target, err := s.storage.GetMembership(ctx, teamID, userID)
		if err != nil {
			return err
		}

		if target.Role == types.RoleOwner {
			return fmt.Errorf("the owner can not be removed: %w", types.ErrConflict)
		}

		if !authorization.CanActOn(acting.Role, target.Role) {
			s.deny(actor, teamID, fmt.Sprintf("%s may not remove a %s", acting.Role, target.Role))
			return fmt.Errorf("%s can not remove a %s: %w", acting.Role, target.Role, types.ErrForbidden)
		}

		return s.storage.RemoveMember(ctx, teamID, userID)
	})
}

func (s *Service) Leave(ctx context.Context, actor *types.User, teamID string) error {
	ctx, span := s.tracer.Start(ctx, "team.Service.Leave")
	defer span.End()

	return s.withTeamLock(ctx, actor, teamID, types.RoleMember, func(ctx context.Context, acting *types.Membership) error {
		if acting.Role == types.RoleOwner {
			return fmt.Errorf("the owner must transfer ownership before leaving: %w", types.ErrConflict)
		}

		return s.storage.RemoveMember(ctx, teamID, actor.ID)
	})
}

// Invite creates a pending invitation and notifies the invitee. Live
// invitations past their deadline are expired first so they do not block
// a fresh one. ttl is capped by the configured invitation lifetime, which
// also applies when ttl is not positive.
func (s *Service) Invite(ctx context.Context, actor *types.User, teamID, email string, role types.Role, ttl time.Duration) (*types.Invitation, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.Invite")
	defer span.End()

	if role != types.RoleAdmin && role != types.RoleMember {
		return nil, fmt.Errorf("invitations grant admin or member, not %q: %w", role, types.ErrInvalid)
	}

	acting, err := s.authz.Authorize(ctx, actor, teamID, types.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if !authorization.CanGrant(acting.Role, role) {
		s.deny(actor, teamID, fmt.Sprintf("%s may not invite a %s", acting.Role, role))
		return nil, fmt.Errorf("%s can not invite a %s: %w", acting.Role, role, types.ErrForbidden)
	}

	t, err := s.storage.GetTeam(ctx, teamID)
	if err != nil {
		return nil, translateError(err)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now()

	var created *types.Invitation

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.storage.ExpireInvitations(ctx, teamID, email, now); err != nil {
			return err
		}

		invitee, err := s.storage.GetUserByEmail(ctx, email)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if invitee != nil {
			_, err := s.storage.GetMembership(ctx, teamID, invitee.ID)
			switch {
			case err == nil:
				return fmt.Errorf("%s is already a member: %w", email, types.ErrConflict)
			case !errors.Is(err, storage.ErrNotFound):
				return err
			}
		}

		created, err = s.storage.CreateInvitation(ctx, &types.Invitation{
			TeamID:    teamID,
			Email:     email,
			Role:      role,
			Status:    types.InvitationPending,
			InvitedBy: actor.ID,
			ExpiresAt: now.Add(s.invitationTTL(ttl)),
		})
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}

	s.dispatcher.Send(
		ctx,
		types.NotificationInvitation,
		created.Email,
		created.ID,
		map[string]string{"team": t.Title, "inviter": actor.Login, "role": string(role)},
	)

	return created, nil
}

func (s *Service) invitationTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > s.invitationLifetime {
		return s.invitationLifetime
	}

	return ttl
}

// ListInvitations reports the effective status, invitations past their
// deadline read as expired even before housekeeping persisted it
func (s *Service) ListInvitations(ctx context.Context, actor *types.User, teamID string, page, size int64) ([]*types.Invitation, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.ListInvitations")
	defer span.End()

	if _, err := s.authz.Authorize(ctx, actor, teamID, types.RoleAdmin); err != nil {
		return nil, err
	}

	invitations, err := s.storage.ListInvitations(ctx, teamID, page, size)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, i := range invitations {
		i.Status = i.EffectiveStatus(now)
	}

	return invitations, nil
}

// AcceptInvitation turns a pending invitation addressed to actor into a
// membership. An invitation found past its deadline is marked expired.
func (s *Service) AcceptInvitation(ctx context.Context, actor *types.User, invitationID string) (*types.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.AcceptInvitation")
	defer span.End()

	if actor == nil {
		return nil, types.ErrUnauthenticated
	}

	var (
		membership *types.Membership
		expired    bool
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.storage.GetInvitationForUpdate(ctx, invitationID)
		if err != nil {
			return err
		}

		if !strings.EqualFold(inv.Email, actor.Email) {
			s.deny(actor, inv.TeamID, "invitation addressed to another email")
			return fmt.Errorf("invitation is addressed to another email: %w", types.ErrForbidden)
		}

		if !actor.Verified() {
			return fmt.Errorf("email must be verified to accept invitations: %w", types.ErrForbidden)
		}

		now := s.now()

		switch inv.EffectiveStatus(now) {
		case types.InvitationPending:
		case types.InvitationExpired:
			expired = true
			if inv.Status == types.InvitationExpired {
				return nil
			}
			return s.storage.UpdateInvitationStatus(ctx, inv.ID, types.InvitationExpired, now)
		default:
			return fmt.Errorf("invitation %s is %s: %w", inv.ID, inv.Status, types.ErrInvalidState)
		}

		if err := s.storage.LockTeam(ctx, inv.TeamID); err != nil {
			return err
		}

		membership, err = s.storage.AddMember(ctx, inv.TeamID, actor.ID, inv.Role)
		if err != nil {
			return err
		}

		return s.storage.UpdateInvitationStatus(ctx, inv.ID, types.InvitationAccepted, now)
	})
	if err != nil {
		return nil, translateError(err)
	}

	if expired {
		return nil, fmt.Errorf("invitation %s has expired: %w", invitationID, types.ErrExpired)
	}

	membership.Login = actor.Login
	membership.Email = actor.Email

	return membership, nil
}

// ToggleInvitation flips a live invitation between pending and disabled
func (s *Service) ToggleInvitation(ctx context.Context, actor *types.User, invitationID string) (*types.Invitation, error) {
	ctx, span := s.tracer.Start(ctx, "team.Service.ToggleInvitation")
	defer span.End()

	var toggled *types.Invitation

	err := s.withInvitation(ctx, actor, invitationID, func(ctx context.Context, inv *types.Invitation, now time.Time) error {
		next := types.InvitationDisabled
		if inv.Status == types.InvitationDisabled {
			next = types.InvitationPending
		}

		if err := s.storage.UpdateInvitationStatus(ctx, inv.ID, next, now); err != nil {
			return err
		}

		inv.Status = next
		inv.UpdatedAt = now
		toggled = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toggled, nil
}

func (s *Service) RevokeInvitation(ctx context.Context, actor *types.User, invitationID string) error {
	ctx, span := s.tracer.Start(ctx, "team.Service.RevokeInvitation")
	defer span.End()

	return s.withInvitation(ctx, actor, invitationID, func(ctx context.Context, inv *types.Invitation, now time.Time) error {
		return s.storage.UpdateInvitationStatus(ctx, inv.ID, types.InvitationRevoked, now)
	})
}

// withTeamLock runs fn in a transaction holding the team row lock, with the
// actor's membership read after the lock was taken
func (s *Service) withTeamLock(ctx context.Context, actor *types.User, teamID string, required types.Role, fn func(context.Context, *types.Membership) error) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.storage.LockTeam(ctx, teamID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("team %s is not accessible: %w", teamID, types.ErrForbidden)
			}
			return err
		}

		acting, err := s.authz.Authorize(ctx, actor, teamID, required)
		if err != nil {
			return err
		}

		return fn(ctx, acting)
	})

	return translateError(err)
}

// withInvitation locks a live invitation for an admin of its team. An
// invitation found past its deadline is marked expired and reported as
// ErrInvalidState.
func (s *Service) withInvitation(ctx context.Context, actor *types.User, invitationID string, fn func(context.Context, *types.Invitation, time.Time) error) error {
	var lapsed bool

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.storage.GetInvitationForUpdate(ctx, invitationID)
		if err != nil {
			return err
		}

		if _, err := s.authz.Authorize(ctx, actor, inv.TeamID, types.RoleAdmin); err != nil {
			return err
		}

		now := s.now()

		if inv.Status.Terminal() {
			return fmt.Errorf("invitation %s is %s: %w", inv.ID, inv.Status, types.ErrInvalidState)
		}

		if inv.EffectiveStatus(now) == types.InvitationExpired {
			lapsed = true
			return s.storage.UpdateInvitationStatus(ctx, inv.ID, types.InvitationExpired, now)
		}

		return fn(ctx, inv, now)
	})
	if err != nil {
		return translateError(err)
	}

	if lapsed {
		return fmt.Errorf("invitation %s is expired: %w", invitationID, types.ErrInvalidState)
	}

	return nil
}

func (s *Service) deny(actor *types.User, teamID, reason string) {
	s.logger.Security().AuthzFailure(actor.ID, authorization.TeamResource(teamID), logging.WithContext("reason", reason))
}

// translateError maps storage sentinels to domain errors, everything else is
// passed through unchanged
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%v: %w", err, types.ErrNotFound)
	case errors.Is(err, storage.ErrDuplicateKey):
		return fmt.Errorf("%s: %w", conflictReason(err), types.ErrConflict)
	case errors.Is(err, storage.ErrForeignKeyViolation):
		return fmt.Errorf("%v: %w", err, types.ErrNotFound)
	}
	return err
}

func conflictReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "invitations_live_unique"):
		return "a live invitation for this email already exists"
	case strings.Contains(msg, "memberships_team_user_key"):
		return "already a member of the team"
	case strings.Contains(msg, "memberships_single_owner"):
		return "the team already has an owner"
	}
	return msg
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func NewService(
	storage StorageInterface,
	tx TxInterface,
	authz authorization.AuthorizerInterface,
	dispatcher notification.DispatcherInterface,
	invitationLifetime time.Duration,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	s := new(Service)

	s.storage = storage
	s.tx = tx
	s.authz = authz
	s.dispatcher = dispatcher
	s.invitationLifetime = invitationLifetime
	s.now = time.Now

	s.tracer = tracer
	s.monitor = monitor
	s.logger = logger

	return s
}
