// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/teams-service/internal/authorization"
	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
)

//go:generate mockgen -build_flags=--mod=mod -package team -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package team -destination ./mock_dispatcher.go -source=../notification/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package team -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package team -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package team -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

// memoryStore mimics the constraints of the teams schema
type memoryStore struct {
	mu          sync.Mutex
	seq         int
	users       map[string]*types.User
	teams       map[string]*types.Team
	members     map[string]map[string]*types.Membership
	invitations map[string]*types.Invitation
	locks       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       map[string]*types.User{},
		teams:       map[string]*types.Team{},
		members:     map[string]map[string]*types.Membership{},
		invitations: map[string]*types.Invitation{},
	}
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) addUser(login string) *types.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := &types.User{ID: login, Login: login, Email: login + "@example.com", Status: types.UserStatusVerified}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memoryStore) CreateTeam(_ context.Context, title string) (*types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &types.Team{ID: m.nextID("team"), Title: title}
	m.teams[t.ID] = t
	m.members[t.ID] = map[string]*types.Membership{}

	out := *t
	return &out, nil
}

func (m *memoryStore) GetTeam(_ context.Context, id string) (*types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (m *memoryStore) LockTeam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[id]; !ok {
		return storage.ErrNotFound
	}
	m.locks++
	return nil
}

func (m *memoryStore) UpdateTeamTitle(_ context.Context, id, title string) (*types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t.Title = title
	out := *t
	return &out, nil
}

func (m *memoryStore) DeleteTeam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.teams, id)
	delete(m.members, id)
	for k, inv := range m.invitations {
		if inv.TeamID == id {
			delete(m.invitations, k)
		}
	}
	return nil
}

func (m *memoryStore) ListTeamsByUserID(_ context.Context, userID string) ([]*types.TeamWithRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	teams := make([]*types.TeamWithRole, 0)
	for id, members := range m.members {
		if mem, ok := members[userID]; ok {
			teams = append(teams, &types.TeamWithRole{Team: *m.teams[id], Role: mem.Role, MemberCount: len(members)})
		}
	}
	return teams, nil
}

func (m *memoryStore) ownerOf(teamID string) string {
	for id, mem := range m.members[teamID] {
		if mem.Role == types.RoleOwner {
			return id
		}
	}
	return ""
}

func (m *memoryStore) AddMember(_ context.Context, teamID, userID string, role types.Role) (*types.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.members[teamID]
	if !ok {
		return nil, fmt.Errorf("memberships_team_id_fkey: %w", storage.ErrForeignKeyViolation)
	}
	if _, ok := members[userID]; ok {
		return nil, fmt.Errorf("memberships_team_user_key: %w", storage.ErrDuplicateKey)
	}
	if role == types.RoleOwner && m.ownerOf(teamID) != "" {
		return nil, fmt.Errorf("memberships_single_owner: %w", storage.ErrDuplicateKey)
	}

	mem := &types.Membership{ID: m.nextID("membership"), TeamID: teamID, UserID: userID, Role: role}
	members[userID] = mem

	out := *mem
	return &out, nil
}

func (m *memoryStore) GetMembership(_ context.Context, teamID, userID string) (*types.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.members[teamID][userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *mem
	return &out, nil
}

func (m *memoryStore) ListMembers(_ context.Context, teamID string) ([]*types.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]*types.Membership, 0)
	for _, mem := range m.members[teamID] {
		out := *mem
		members = append(members, &out)
	}
	return members, nil
}

func (m *memoryStore) UpdateMemberRole(_ context.Context, teamID, userID string, role types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.members[teamID][userID]
	if !ok {
		return storage.ErrNotFound
	}
	if owner := m.ownerOf(teamID); role == types.RoleOwner && owner != "" && owner != userID {
		return fmt.Errorf("memberships_single_owner: %w", storage.ErrDuplicateKey)
	}
	mem.Role = role
	return nil
}

func (m *memoryStore) RemoveMember(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[teamID][userID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.members[teamID], userID)
	return nil
}

func (m *memoryStore) CreateInvitation(_ context.Context, i *types.Invitation) (*types.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.invitations {
		if existing.TeamID == i.TeamID && existing.Email == i.Email && !existing.Status.Terminal() {
			return nil, fmt.Errorf("invitations_live_unique: %w", storage.ErrDuplicateKey)
		}
	}

	created := *i
	created.ID = m.nextID("invitation")
	m.invitations[created.ID] = &created

	out := created
	return &out, nil
}

func (m *memoryStore) GetInvitationForUpdate(_ context.Context, id string) (*types.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (m *memoryStore) ListInvitations(_ context.Context, teamID string, _, _ int64) ([]*types.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	invitations := make([]*types.Invitation, 0)
	for _, inv := range m.invitations {
		if inv.TeamID == teamID {
			out := *inv
			invitations = append(invitations, &out)
		}
	}
	return invitations, nil
}

func (m *memoryStore) UpdateInvitationStatus(_ context.Context, id string, status types.InvitationStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[id]
	if !ok {
		return storage.ErrNotFound
	}
	inv.Status = status
	if status == types.InvitationAccepted {
		inv.AcceptedAt = &at
	}
	return nil
}

func (m *memoryStore) ExpireInvitations(_ context.Context, teamID, email string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, inv := range m.invitations {
		if teamID != "" && inv.TeamID != teamID {
			continue
		}
		if email != "" && inv.Email != email {
			continue
		}
		if !inv.Status.Terminal() && !now.Before(inv.ExpiresAt) {
			inv.Status = types.InvitationExpired
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) invitationStatus(id string) types.InvitationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.invitations[id].Status
}

func (m *memoryStore) role(teamID, userID string) types.Role {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mem, ok := m.members[teamID][userID]; ok {
		return mem.Role
	}
	return ""
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type sentNotification struct {
	kind      types.NotificationKind
	recipient string
	token     string
	data      map[string]string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (d *recordingDispatcher) Send(_ context.Context, kind types.NotificationKind, recipient, token string, data map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sent = append(d.sent, sentNotification{kind, recipient, token, data})
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service    *Service
	store      *memoryStore
	dispatcher *recordingDispatcher
	clock      *clock

	team   *types.Team
	owner  *types.User
	admin  *types.User
	admin2 *types.User
	member *types.User
	other  *types.User
}

// newFixture builds a team owned by owner with two admins and a member,
// other is a registered user outside the team
func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logging.NewNoopLogger()
	tracer := tracing.NewNoopTracer()
	monitor := monitoring.NewNoopMonitor("teams-service", logger)

	f := &fixture{
		store:      newMemoryStore(),
		dispatcher: new(recordingDispatcher),
		clock:      &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	authz := authorization.NewAuthorizer(f.store, tracer, monitor, logger)
	f.service = NewService(f.store, passthroughTx{}, authz, f.dispatcher, 24*time.Hour, tracer, monitor, logger).
		WithClock(f.clock.Now)

	f.owner = f.store.addUser("owner")
	f.admin = f.store.addUser("admin")
	f.admin2 = f.store.addUser("admin2")
	f.member = f.store.addUser("member")
	f.other = f.store.addUser("other")

	ctx := context.Background()

	team, err := f.service.CreateTeam(ctx, f.owner, " Platform ")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	f.team = team

	for _, m := range []struct {
		user *types.User
		role types.Role
	}{{f.admin, types.RoleAdmin}, {f.admin2, types.RoleAdmin}, {f.member, types.RoleMember}} {
		if _, err := f.store.AddMember(ctx, team.ID, m.user.ID, m.role); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	return f
}

func TestService_CreateTeam(t *testing.T) {
	f := newFixture(t)

	if f.team.Title != "Platform" {
		t.Errorf("expected trimmed title, got %q", f.team.Title)
	}
	if role := f.store.role(f.team.ID, f.owner.ID); role != types.RoleOwner {
		t.Errorf("expected creator to be owner, got %q", role)
	}

	teams, err := f.service.ListTeams(context.Background(), f.member)
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 1 || teams[0].Role != types.RoleMember || teams[0].MemberCount != 4 {
		t.Errorf("unexpected teams %+v", teams)
	}
}

func TestService_ChangeRole(t *testing.T) {
	tests := []struct {
		name        string
		actor       func(*fixture) *types.User
		target      func(*fixture) *types.User
		role        types.Role
		expectedErr error
	}{
		{
			name:        "member can not change roles",
			actor:       func(f *fixture) *types.User { return f.member },
			target:      func(f *fixture) *types.User { return f.admin },
			role:        types.RoleMember,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "outsider is forbidden",
			actor:       func(f *fixture) *types.User { return f.other },
			target:      func(f *fixture) *types.User { return f.member },
			role:        types.RoleAdmin,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "admin can not grant admin",
			actor:       func(f *fixture) *types.User { return f.admin },
			target:      func(f *fixture) *types.User { return f.member },
			role:        types.RoleAdmin,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "admin can not act on another admin",
			actor:       func(f *fixture) *types.User { return f.admin },
			target:      func(f *fixture) *types.User { return f.admin2 },
			role:        types.RoleMember,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "admin can not grant owner",
			actor:       func(f *fixture) *types.User { return f.admin },
			target:      func(f *fixture) *types.User { return f.member },
			role:        types.RoleOwner,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "demoting the owner is a conflict",
			actor:       func(f *fixture) *types.User { return f.admin },
			target:      func(f *fixture) *types.User { return f.owner },
			role:        types.RoleMember,
			expectedErr: types.ErrConflict,
		},
		{
			name:        "owner can not change own role",
			actor:       func(f *fixture) *types.User { return f.owner },
			target:      func(f *fixture) *types.User { return f.owner },
			role:        types.RoleAdmin,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "admin can not change own role",
			actor:       func(f *fixture) *types.User { return f.admin },
			target:      func(f *fixture) *types.User { return f.admin },
			role:        types.RoleMember,
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "unknown target",
			actor:       func(f *fixture) *types.User { return f.owner },
			target:      func(f *fixture) *types.User { return f.other },
			role:        types.RoleAdmin,
			expectedErr: types.ErrNotFound,
		},
		{
			name:        "invalid role",
			actor:       func(f *fixture) *types.User { return f.owner },
			target:      func(f *fixture) *types.User { return f.member },
			role:        types.Role("superuser"),
			expectedErr: types.ErrInvalid,
		},
		{
			name:   "owner promotes member",
			actor:  func(f *fixture) *types.User { return f.owner },
			target: func(f *fixture) *types.User { return f.member },
			role:   types.RoleAdmin,
		},
		{
			name:   "owner demotes admin",
			actor:  func(f *fixture) *types.User { return f.owner },
			target: func(f *fixture) *types.User { return f.admin },
			role:   types.RoleMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			target := tt.target(f)
			before := f.store.role(f.team.ID, target.ID)

			m, err := f.service.ChangeRole(context.Background(), tt.actor(f), f.team.ID, target.ID, tt.role)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				if after := f.store.role(f.team.ID, target.ID); after != before {
					t.Errorf("role changed from %q to %q despite the error", before, after)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Role != tt.role || f.store.role(f.team.ID, target.ID) != tt.role {
				t.Errorf("expected role %q to be stored", tt.role)
			}
		})
	}
}

func TestService_MemberForbiddenUntilPromoted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.RenameTeam(ctx, f.member, f.team.ID, "Renamed"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected member rename to be forbidden, got %v", err)
	}

	if _, err := f.service.ChangeRole(ctx, f.owner, f.team.ID, f.member.ID, types.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}

	renamed, err := f.service.RenameTeam(ctx, f.member, f.team.ID, "Renamed")
	if err != nil {
		t.Fatalf("expected promoted admin to rename, got %v", err)
	}
	if renamed.Title != "Renamed" {
		t.Errorf("expected new title, got %q", renamed.Title)
	}
}

func TestService_TransferOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ChangeRole(ctx, f.owner, f.team.ID, f.admin.ID, types.RoleOwner); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if role := f.store.role(f.team.ID, f.admin.ID); role != types.RoleOwner {
		t.Errorf("expected new owner, got %q", role)
	}
	if role := f.store.role(f.team.ID, f.owner.ID); role != types.RoleAdmin {
		t.Errorf("expected previous owner to become admin, got %q", role)
	}

	members, _ := f.store.ListMembers(ctx, f.team.ID)
	owners := 0
	for _, m := range members {
		if m.Role == types.RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("expected exactly one owner, got %d", owners)
	}

	if err := f.service.DeleteTeam(ctx, f.owner, f.team.ID); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("previous owner must no longer delete the team, got %v", err)
	}
}

func TestService_RemoveAndLeave(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		run         func(*fixture) error
		expectedErr error
	}{
		{
			name:        "removing the owner is a conflict",
			run:         func(f *fixture) error { return f.service.RemoveMember(ctx, f.admin, f.team.ID, f.owner.ID) },
			expectedErr: types.ErrConflict,
		},
		{
			name:        "admin can not remove an admin",
			run:         func(f *fixture) error { return f.service.RemoveMember(ctx, f.admin, f.team.ID, f.admin2.ID) },
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "removing yourself is forbidden",
			run:         func(f *fixture) error { return f.service.RemoveMember(ctx, f.admin, f.team.ID, f.admin.ID) },
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "member can not remove",
			run:         func(f *fixture) error { return f.service.RemoveMember(ctx, f.member, f.team.ID, f.admin.ID) },
			expectedErr: types.ErrForbidden,
		},
		{
			name: "admin removes member",
			run:  func(f *fixture) error { return f.service.RemoveMember(ctx, f.admin, f.team.ID, f.member.ID) },
		},
		{
			name: "owner removes admin",
			run:  func(f *fixture) error { return f.service.RemoveMember(ctx, f.owner, f.team.ID, f.admin.ID) },
		},
		{
			name:        "owner can not leave",
			run:         func(f *fixture) error { return f.service.Leave(ctx, f.owner, f.team.ID) },
			expectedErr: types.ErrConflict,
		},
		{
			name: "member leaves",
			run:  func(f *fixture) error { return f.service.Leave(ctx, f.member, f.team.ID) },
		},
		{
			name:        "outsider can not leave",
			run:         func(f *fixture) error { return f.service.Leave(ctx, f.other, f.team.ID) },
			expectedErr: types.ErrForbidden,
		},
		{
			name:        "unknown team reads as forbidden",
			run:         func(f *fixture) error { return f.service.Leave(ctx, f.member, "team-missing") },
			expectedErr: types.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := tt.run(f)

			if tt.expectedErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestService_InvitationLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	invitee := f.store.addUser("invitee")

	inv, err := f.service.Invite(ctx, f.admin, f.team.ID, "Invitee@Example.com", types.RoleMember, 0)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.Status != types.InvitationPending || inv.Email != "invitee@example.com" {
		t.Fatalf("unexpected invitation %+v", inv)
	}

	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.dispatcher.sent))
	}
	sent := f.dispatcher.sent[0]
	if sent.kind != types.NotificationInvitation || sent.token != inv.ID || sent.data["team"] != "Platform" || sent.data["inviter"] != "admin" {
		t.Errorf("unexpected notification %+v", sent)
	}

	if _, err := f.service.Invite(ctx, f.owner, f.team.ID, "invitee@example.com", types.RoleAdmin, 0); !errors.Is(err, types.ErrConflict) {
		t.Errorf("expected duplicate pending invitation to conflict, got %v", err)
	}

	toggled, err := f.service.ToggleInvitation(ctx, f.admin, inv.ID)
	if err != nil || toggled.Status != types.InvitationDisabled {
		t.Fatalf("expected disabled invitation, got %v, %v", toggled, err)
	}

	if _, err := f.service.Invite(ctx, f.admin, f.team.ID, "invitee@example.com", types.RoleMember, 0); !errors.Is(err, types.ErrConflict) {
		t.Errorf("a disabled invitation still occupies the slot, got %v", err)
	}

	if _, err := f.service.AcceptInvitation(ctx, invitee, inv.ID); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("expected disabled invitation to be unusable, got %v", err)
	}

	if toggled, err = f.service.ToggleInvitation(ctx, f.admin, inv.ID); err != nil || toggled.Status != types.InvitationPending {
		t.Fatalf("expected pending invitation, got %v, %v", toggled, err)
	}

	if _, err := f.service.AcceptInvitation(ctx, f.other, inv.ID); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected other users to be refused, got %v", err)
	}

	m, err := f.service.AcceptInvitation(ctx, invitee, inv.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != types.RoleMember || f.store.role(f.team.ID, invitee.ID) != types.RoleMember {
		t.Errorf("expected invitee to join as member")
	}
	if status := f.store.invitationStatus(inv.ID); status != types.InvitationAccepted {
		t.Errorf("expected accepted, got %s", status)
	}

	if _, err := f.service.AcceptInvitation(ctx, invitee, inv.ID); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("expected second accept to fail, got %v", err)
	}
	if _, err := f.service.ToggleInvitation(ctx, f.admin, inv.ID); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("expected toggle of accepted invitation to fail, got %v", err)
	}
	if err := f.service.RevokeInvitation(ctx, f.admin, inv.ID); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("expected revoke of accepted invitation to fail, got %v", err)
	}

	if _, err := f.service.Invite(ctx, f.admin, f.team.ID, "invitee@example.com", types.RoleMember, 0); !errors.Is(err, types.ErrConflict) {
		t.Errorf("expected inviting an existing member to conflict, got %v", err)
	}
}

func TestService_InvitationRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.Invite(ctx, f.member, f.team.ID, "new@example.com", types.RoleMember, 0); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected members to be unable to invite, got %v", err)
	}
	if _, err := f.service.Invite(ctx, f.admin, f.team.ID, "new@example.com", types.RoleAdmin, 0); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected admins to be unable to invite admins, got %v", err)
	}
	if _, err := f.service.Invite(ctx, f.owner, f.team.ID, "new@example.com", types.RoleOwner, 0); !errors.Is(err, types.ErrInvalid) {
		t.Errorf("expected owner invitations to be invalid, got %v", err)
	}
	if _, err := f.service.Invite(ctx, f.owner, f.team.ID, "new@example.com", types.RoleAdmin, 0); err != nil {
		t.Errorf("expected owner to invite admins, got %v", err)
	}
}

func TestService_InvitationExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	invitee := f.store.addUser("late")

	inv, err := f.service.Invite(ctx, f.admin, f.team.ID, invitee.Email, types.RoleMember, 0)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	f.clock.Advance(25 * time.Hour)

	listed, err := f.service.ListInvitations(ctx, f.admin, f.team.ID, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != types.InvitationExpired {
		t.Errorf("expected expired status at read time, got %+v", listed)
	}
	if status := f.store.invitationStatus(inv.ID); status != types.InvitationPending {
		t.Errorf("listing must not write, got %s", status)
	}

	if _, err := f.service.AcceptInvitation(ctx, invitee, inv.ID); !errors.Is(err, types.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if status := f.store.invitationStatus(inv.ID); status != types.InvitationExpired {
		t.Errorf("expected row to be marked expired, got %s", status)
	}
	if role := f.store.role(f.team.ID, invitee.ID); role != "" {
		t.Errorf("expired invitation must not grant membership, got %q", role)
	}

	if _, err := f.service.AcceptInvitation(ctx, invitee, inv.ID); !errors.Is(err, types.ErrExpired) {
		t.Errorf("expected persisted expiry to keep answering ErrExpired, got %v", err)
	}

	fresh, err := f.service.Invite(ctx, f.admin, f.team.ID, invitee.Email, types.RoleMember, 0)
	if err != nil {
		t.Fatalf("expected expired invitation to free the slot, got %v", err)
	}
	if _, err := f.service.AcceptInvitation(ctx, invitee, fresh.ID); err != nil {
		t.Errorf("accept fresh invitation: %v", err)
	}
}

func TestService_AcceptExpiredAfterHousekeeping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	invitee := f.store.addUser("swept")

	inv, err := f.service.Invite(ctx, f.admin, f.team.ID, invitee.Email, types.RoleMember, 0)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	f.clock.Advance(25 * time.Hour)

	if n, _ := f.store.ExpireInvitations(ctx, "", "", f.clock.Now()); n != 1 {
		t.Fatalf("expected housekeeping to expire 1 invitation, got %d", n)
	}

	if _, err := f.service.AcceptInvitation(ctx, invitee, inv.ID); !errors.Is(err, types.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestService_InvitationTTL(t *testing.T) {
	tests := []struct {
		name     string
		ttl      time.Duration
		expected time.Duration
	}{
		{name: "configured lifetime by default", ttl: 0, expected: 24 * time.Hour},
		{name: "negative falls back", ttl: -time.Minute, expected: 24 * time.Hour},
		{name: "shorter ttl kept", ttl: 10 * time.Minute, expected: 10 * time.Minute},
		{name: "longer ttl capped", ttl: 72 * time.Hour, expected: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			inv, err := f.service.Invite(context.Background(), f.admin, f.team.ID, "ttl@example.com", types.RoleMember, tt.ttl)
			if err != nil {
				t.Fatalf("invite: %v", err)
			}

			if got := inv.ExpiresAt.Sub(f.clock.Now()); got != tt.expected {
				t.Errorf("expected lifetime %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestService_ShortLivedInvitationExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	invitee := f.store.addUser("quick")

	inv, err := f.service.Invite(ctx, f.admin, f.team.ID, invitee.Email, types.RoleMember, 10*time.Minute)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	f.clock.Advance(9 * time.Minute)

	listed, err := f.service.ListInvitations(ctx, f.admin, f.team.ID, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != types.InvitationPending {
		t.Fatalf("expected invitation to be pending before its ttl, got %+v", listed)
	}

	f.clock.Advance(time.Minute)

	listed, err = f.service.ListInvitations(ctx, f.admin, f.team.ID, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != types.InvitationExpired {
		t.Errorf("expected invitation to read as expired after its ttl, got %+v", listed)
	}

	if _, err := f.service.AcceptInvitation(ctx, invitee, inv.ID); !errors.Is(err, types.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestService_StaleInvitationIsExpiredBeforeInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stale, err := f.service.Invite(ctx, f.admin, f.team.ID, "stale@example.com", types.RoleMember, 0)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	f.clock.Advance(48 * time.Hour)

	if _, err := f.service.Invite(ctx, f.admin, f.team.ID, "stale@example.com", types.RoleMember, 0); err != nil {
		t.Fatalf("expected re-invite after expiry, got %v", err)
	}
	if status := f.store.invitationStatus(stale.ID); status != types.InvitationExpired {
		t.Errorf("expected stale invitation to be expired, got %s", status)
	}

	if _, err := f.service.ToggleInvitation(ctx, f.admin, stale.ID); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("expected toggling an expired invitation to fail, got %v", err)
	}
}

func TestService_RevokeInvitation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inv, err := f.service.Invite(ctx, f.admin, f.team.ID, "gone@example.com", types.RoleMember, 0)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	if err := f.service.RevokeInvitation(ctx, f.member, inv.ID); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected members to be unable to revoke, got %v", err)
	}
	if err := f.service.RevokeInvitation(ctx, f.admin, inv.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if status := f.store.invitationStatus(inv.ID); status != types.InvitationRevoked {
		t.Errorf("expected revoked, got %s", status)
	}
	if err := f.service.RevokeInvitation(ctx, f.admin, inv.ID); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("expected revoking twice to fail, got %v", err)
	}
	if err := f.service.RevokeInvitation(ctx, f.admin, "invitation-missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_GetTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	details, err := f.service.GetTeam(ctx, f.member, f.team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if details.Role != types.RoleMember || len(details.Members) != 4 {
		t.Errorf("unexpected details %+v", details)
	}

	if _, err := f.service.GetTeam(ctx, f.other, f.team.ID); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected outsiders to be forbidden, got %v", err)
	}

	if err := f.service.DeleteTeam(ctx, f.admin, f.team.ID); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected admins to be unable to delete, got %v", err)
	}
	if err := f.service.DeleteTeam(ctx, f.owner, f.team.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.GetTeam(ctx, f.owner, f.team.ID); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected deleted team to be inaccessible, got %v", err)
	}
}

func TestService_ChangeRoleLocksBeforeAuthorizing(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockStorage := NewMockStorageInterface(ctrl)
	mockTx := NewMockTxInterface(ctrl)
	mockTracer := NewMockTracingInterface(ctrl)
	mockLogger := NewMockLoggerInterface(ctrl)
	ctx := context.Background()

	mockTracer.EXPECT().Start(gomock.Any(), "team.Service.ChangeRole").Return(ctx, trace.SpanFromContext(ctx))
	mockTx.EXPECT().WithTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	gomock.InOrder(
		mockStorage.EXPECT().LockTeam(gomock.Any(), "team-1").Return(nil),
		mockStorage.EXPECT().GetMembership(gomock.Any(), "team-1", "owner").
			Return(&types.Membership{TeamID: "team-1", UserID: "owner", Role: types.RoleOwner}, nil),
		mockStorage.EXPECT().GetMembership(gomock.Any(), "team-1", "member").
			Return(&types.Membership{TeamID: "team-1", UserID: "member", Role: types.RoleMember}, nil),
		mockStorage.EXPECT().UpdateMemberRole(gomock.Any(), "team-1", "member", types.RoleAdmin).Return(nil),
	)

	noop := logging.NewNoopLogger()
	authz := authorization.NewAuthorizer(mockStorage, tracing.NewNoopTracer(), monitoring.NewNoopMonitor("teams-service", noop), noop)
	s := NewService(mockStorage, mockTx, authz, NewMockDispatcherInterface(ctrl), time.Hour, mockTracer, NewMockMonitorInterface(ctrl), mockLogger)

	m, err := s.ChangeRole(ctx, &types.User{ID: "owner"}, "team-1", "member", types.RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Role != types.RoleAdmin {
		t.Errorf("expected admin, got %q", m.Role)
	}
}
