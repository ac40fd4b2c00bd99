// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tokens

import (
	"context"
	"time"

	"github.com/canonical/teams-service/internal/types"
)

type ServiceInterface interface {
	Issue(ctx context.Context, subject string, purpose types.TokenPurpose, ttl time.Duration, payload string) (*types.Token, error)
	Validate(ctx context.Context, raw string, purpose types.TokenPurpose) (*types.Token, error)
	Consume(ctx context.Context, raw string, purpose types.TokenPurpose) (*types.Token, error)
	RevokeAll(ctx context.Context, userID string, purpose types.TokenPurpose) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type StorageInterface interface {
	CreateToken(ctx context.Context, t *types.TokenRecord) error
	GetToken(ctx context.Context, id string) (*types.TokenRecord, error)
	ClaimToken(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeUserTokens(ctx context.Context, userID string, purpose types.TokenPurpose, at time.Time) (int64, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}
