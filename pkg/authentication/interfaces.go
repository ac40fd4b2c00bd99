// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"context"

	"github.com/canonical/teams-service/internal/types"
)

type TokenVerifierInterface interface {
	// VerifyToken verifies a raw access token and returns its subject (user ID)
	VerifyToken(ctx context.Context, rawToken string) (string, error)
}

type UserStoreInterface interface {
	GetUserByID(ctx context.Context, id string) (*types.User, error)
}
