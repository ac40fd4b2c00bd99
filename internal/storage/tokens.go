// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/canonical/teams-service/internal/types"
)

func (s *Storage) CreateToken(ctx context.Context, t *types.TokenRecord) error {
	ctx, span := s.tracer.Start(ctx, "storage.CreateToken")
	defer span.End()

	_, err := s.db.Statement(ctx).
		Insert("tokens").
		Columns("id", "user_id", "purpose", "payload", "expires_at").
		Values(t.ID, t.UserID, t.Purpose, t.Payload, t.ExpiresAt).
		ExecContext(ctx)
	if err != nil {
		return wrapWriteError(err, "insert token")
	}

	return nil
}

func (s *Storage) GetToken(ctx context.Context, id string) (*types.TokenRecord, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetToken")
	defer span.End()

	var t types.TokenRecord
	err := s.db.Statement(ctx).
		Select("id", "user_id", "purpose", "payload", "expires_at", "consumed_at", "created_at").
		From("tokens").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&t.ID, &t.UserID, &t.Purpose, &t.Payload, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &t, nil
}

// ClaimToken marks the token consumed if nobody did before.
// The conditional update is atomic, so of many concurrent claimants exactly
// one observes true.
func (s *Storage) ClaimToken(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ClaimToken")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Update("tokens").
		Set("consumed_at", at).
		Where(sq.Eq{"id": id, "consumed_at": nil}).
		ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows == 1, nil
}

func (s *Storage) RevokeUserTokens(ctx context.Context, userID string, purpose types.TokenPurpose, at time.Time) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "storage.RevokeUserTokens")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Update("tokens").
		Set("consumed_at", at).
		Where(sq.Eq{"user_id": userID, "purpose": purpose, "consumed_at": nil}).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", err)
	}

	return res.RowsAffected()
}

func (s *Storage) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "storage.DeleteExpiredTokens")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Delete("tokens").
		Where(sq.Lt{"expires_at": before}).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return res.RowsAffected()
}
