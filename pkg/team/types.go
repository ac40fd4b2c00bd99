// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package team

import (
	"time"

	"github.com/canonical/teams-service/internal/types"
)

type TeamRequest struct {
	Title string `json:"title" validate:"required,max=128"`
}

type RoleRequest struct {
	Role types.Role `json:"role" validate:"required,role"`
}

type InviteRequest struct {
	Email string     `json:"email" validate:"required,email,max=254"`
	Role  types.Role `json:"role" validate:"required,oneof=admin member"`
	// TTLSec shortens the invitation lifetime, zero keeps the configured one
	TTLSec int64 `json:"ttl_sec,omitempty" validate:"omitempty,min=1"`
}

func (r *InviteRequest) TTL() time.Duration {
	return time.Duration(r.TTLSec) * time.Second
}

// TeamDetails is a team as seen by one of its members
type TeamDetails struct {
	types.Team

	Role    types.Role          `json:"role"`
	Members []*types.Membership `json:"members"`
}
