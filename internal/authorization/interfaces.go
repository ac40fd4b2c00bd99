// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package authorization

import (
	"context"

	"github.com/canonical/teams-service/internal/types"
)

type AuthorizerInterface interface {
	// Authorize resolves the caller's membership in a team and checks it
	// grants at least the required role. It never caches.
	Authorize(context.Context, *types.User, string, types.Role) (*types.Membership, error)
}

type StorageInterface interface {
	GetMembership(ctx context.Context, teamID, userID string) (*types.Membership, error)
}
