// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notification

import (
	"context"

	"github.com/canonical/teams-service/internal/types"
)

type DispatcherInterface interface {
	// Send never fails from the caller's point of view, enqueue errors are logged
	Send(ctx context.Context, kind types.NotificationKind, recipient, token string, data map[string]string)
}
