// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package housekeeping

import (
	"context"
	"time"
)

type TokenPurgerInterface interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type InvitationStorageInterface interface {
	ExpireInvitations(ctx context.Context, teamID, email string, now time.Time) (int64, error)
}
