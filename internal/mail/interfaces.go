// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package mail

import (
	"context"

	"github.com/canonical/teams-service/internal/types"
)

type MailerInterface interface {
	Send(context.Context, types.Notification) error
}
