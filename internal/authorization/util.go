// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authorization

import "github.com/canonical/teams-service/internal/types"

// CanActOn reports whether a member holding actor may change or remove a
// member holding target. Owners act on everyone else, admins on members only.
func CanActOn(actor, target types.Role) bool {
	switch actor {
	case types.RoleOwner:
		return target != types.RoleOwner
	case types.RoleAdmin:
		return target == types.RoleMember
	}
	return false
}

// CanGrant reports whether actor may hand out role, through a role change
// or an invitation
func CanGrant(actor, role types.Role) bool {
	switch actor {
	case types.RoleOwner:
		return role.Valid()
	case types.RoleAdmin:
		return role == types.RoleMember
	}
	return false
}

func TeamResource(teamID string) string {
	return "team:" + teamID
}
