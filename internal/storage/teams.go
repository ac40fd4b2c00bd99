// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/canonical/teams-service/internal/types"
)

func (s *Storage) CreateTeam(ctx context.Context, title string) (*types.Team, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateTeam")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate team ID: %w", err)
	}

	var t types.Team
	err = s.db.Statement(ctx).
		Insert("teams").
		Columns("id", "title").
		Values(id.String(), title).
		Suffix("RETURNING id, title, created_at, updated_at").
		QueryRowContext(ctx).
		Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrapWriteError(err, "insert team")
	}

	return &t, nil
}

func (s *Storage) GetTeam(ctx context.Context, id string) (*types.Team, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetTeam")
	defer span.End()

	var t types.Team
	err := s.db.Statement(ctx).
		Select("id", "title", "created_at", "updated_at").
		From("teams").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &t, nil
}

// LockTeam takes a row lock on the team for the rest of the surrounding
// transaction, serializing membership changes within the team
func (s *Storage) LockTeam(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.LockTeam")
	defer span.End()

	var locked string
	err := s.db.Statement(ctx).
		Select("id").
		From("teams").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		QueryRowContext(ctx).
		Scan(&locked)
	if err != nil {
		if IsNoRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock team: %w", err)
	}

	return nil
}

func (s *Storage) UpdateTeamTitle(ctx context.Context, id, title string) (*types.Team, error) {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateTeamTitle")
	defer span.End()

	var t types.Team
	err := s.db.Statement(ctx).
		Update("teams").
		Set("title", title).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, title, created_at, updated_at").
		QueryRowContext(ctx).
		Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	return &t, nil
}

// DeleteTeam removes the team, memberships and invitations cascade
func (s *Storage) DeleteTeam(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.DeleteTeam")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Delete("teams").
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	return requireRow(res)
}

func (s *Storage) ListTeamsByUserID(ctx context.Context, userID string) ([]*types.TeamWithRole, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListTeamsByUserID")
	defer span.End()

	rows, err := s.db.Statement(ctx).
		Select(
			"t.id", "t.title", "t.created_at", "t.updated_at", "m.role",
			"(SELECT count(*) FROM memberships c WHERE c.team_id = t.id) AS member_count",
		).
		From("teams t").
		Join("memberships m ON t.id = m.team_id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("t.created_at").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*types.TeamWithRole, 0)
	for rows.Next() {
		var t types.TeamWithRole
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt, &t.Role, &t.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return teams, nil
}

func (s *Storage) AddMember(ctx context.Context, teamID, userID string, role types.Role) (*types.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "storage.AddMember")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate membership ID: %w", err)
	}

	var m types.Membership
	err = s.db.Statement(ctx).
		Insert("memberships").
		Columns("id", "team_id", "user_id", "role").
		Values(id.String(), teamID, userID, role).
		Suffix("RETURNING id, team_id, user_id, role, created_at").
		QueryRowContext(ctx).
		Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, wrapWriteError(err, "add member")
	}

	return &m, nil
}

func (s *Storage) GetMembership(ctx context.Context, teamID, userID string) (*types.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetMembership")
	defer span.End()

	var m types.Membership
	err := s.db.Statement(ctx).
		Select("id", "team_id", "user_id", "role", "created_at").
		From("memberships").
		Where(sq.Eq{"team_id": teamID, "user_id": userID}).
		QueryRowContext(ctx).
		Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

func (s *Storage) ListMembers(ctx context.Context, teamID string) ([]*types.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListMembers")
	defer span.End()

	rows, err := s.db.Statement(ctx).
		Select("m.id", "m.team_id", "m.user_id", "m.role", "u.login", "u.email", "m.created_at").
		From("memberships m").
		Join("users u ON u.id = m.user_id").
		Where(sq.Eq{"m.team_id": teamID}).
		OrderBy("m.created_at").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*types.Membership, 0)
	for rows.Next() {
		var m types.Membership
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.Login, &m.Email, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return members, nil
}

func (s *Storage) UpdateMemberRole(ctx context.Context, teamID, userID string, role types.Role) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateMemberRole")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Update("memberships").
		Set("role", role).
		Where(sq.Eq{"team_id": teamID, "user_id": userID}).
		ExecContext(ctx)
	if err != nil {
		return wrapWriteError(err, "update member")
	}

	return requireRow(res)
}

func (s *Storage) RemoveMember(ctx context.Context, teamID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "storage.RemoveMember")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Delete("memberships").
		Where(sq.Eq{"team_id": teamID, "user_id": userID}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return requireRow(res)
}
