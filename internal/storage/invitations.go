// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/canonical/teams-service/internal/db"
	"github.com/canonical/teams-service/internal/types"
)

var invitationColumns = []string{
	"id", "team_id", "email", "role", "status", "invited_by",
	"expires_at", "accepted_at", "created_at", "updated_at",
}

func scanInvitation(row scanner) (*types.Invitation, error) {
	var i types.Invitation
	err := row.Scan(
		&i.ID, &i.TeamID, &i.Email, &i.Role, &i.Status, &i.InvitedBy,
		&i.ExpiresAt, &i.AcceptedAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// CreateInvitation inserts a pending invitation, a live invitation for the
// same team and email violates invitations_live_unique
func (s *Storage) CreateInvitation(ctx context.Context, i *types.Invitation) (*types.Invitation, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateInvitation")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation ID: %w", err)
	}

	row := s.db.Statement(ctx).
		Insert("invitations").
		Columns("id", "team_id", "email", "role", "status", "invited_by", "expires_at").
		Values(id.String(), i.TeamID, strings.ToLower(i.Email), i.Role, types.InvitationPending, i.InvitedBy, i.ExpiresAt).
		Suffix("RETURNING " + strings.Join(invitationColumns, ", ")).
		QueryRowContext(ctx)

	created, err := scanInvitation(row)
	if err != nil {
		return nil, wrapWriteError(err, "insert invitation")
	}

	return created, nil
}

// GetInvitationForUpdate locks the invitation row until the surrounding
// transaction ends
func (s *Storage) GetInvitationForUpdate(ctx context.Context, id string) (*types.Invitation, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetInvitationForUpdate")
	defer span.End()

	return s.getInvitation(ctx, id, "FOR UPDATE")
}

func (s *Storage) getInvitation(ctx context.Context, id, suffix string) (*types.Invitation, error) {
	q := s.db.Statement(ctx).
		Select(invitationColumns...).
		From("invitations").
		Where(sq.Eq{"id": id})

	if suffix != "" {
		q = q.Suffix(suffix)
	}

	i, err := scanInvitation(q.QueryRowContext(ctx))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return i, nil
}

func (s *Storage) ListInvitations(ctx context.Context, teamID string, page, size int64) ([]*types.Invitation, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListInvitations")
	defer span.End()

	pageSize := db.PageSize(size)

	rows, err := s.db.Statement(ctx).
		Select(invitationColumns...).
		From("invitations").
		Where(sq.Eq{"team_id": teamID}).
		OrderBy("created_at DESC").
		Limit(pageSize).
		Offset(db.Offset(page, pageSize)).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]*types.Invitation, 0)
	for rows.Next() {
		i, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return invitations, nil
}

func (s *Storage) UpdateInvitationStatus(ctx context.Context, id string, status types.InvitationStatus, at time.Time) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateInvitationStatus")
	defer span.End()

	q := s.db.Statement(ctx).
		Update("invitations").
		Set("status", status).
		Set("updated_at", at).
		Where(sq.Eq{"id": id})

	if status == types.InvitationAccepted {
		q = q.Set("accepted_at", at)
	}

	res, err := q.ExecContext(ctx)
	if err != nil {
		return wrapWriteError(err, "update invitation")
	}

	return requireRow(res)
}

// ExpireInvitations persists the expired state of live invitations past their
// deadline. Empty teamID or email widen the scope.
func (s *Storage) ExpireInvitations(ctx context.Context, teamID, email string, now time.Time) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ExpireInvitations")
	defer span.End()

	where := sq.And{
		sq.Eq{"status": []types.InvitationStatus{types.InvitationPending, types.InvitationDisabled}},
		sq.LtOrEq{"expires_at": now},
	}
	if teamID != "" {
		where = append(where, sq.Eq{"team_id": teamID})
	}
	if email != "" {
		where = append(where, sq.Eq{"email": strings.ToLower(email)})
	}

	res, err := s.db.Statement(ctx).
		Update("invitations").
		Set("status", types.InvitationExpired).
		Set("updated_at", now).
		Where(where).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}

	return res.RowsAffected()
}
