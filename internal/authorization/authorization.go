// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package authorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
)

var _ AuthorizerInterface = (*Authorizer)(nil)

type Authorizer struct {
	storage StorageInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Authorize reads the membership on every call so a role change is visible
// to the next request. Non members get ErrForbidden, which does not reveal
// whether the team exists. Superusers act with at least admin rights.
func (a *Authorizer) Authorize(ctx context.Context, user *types.User, teamID string, required types.Role) (*types.Membership, error) {
	ctx, span := a.tracer.Start(ctx, "authorization.Authorizer.Authorize")
	defer span.End()

	if user == nil {
		return nil, types.ErrUnauthenticated
	}

	m, err := a.storage.GetMembership(ctx, teamID, user.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if user.IsSuperuser {
		m = elevate(m, teamID, user)
	}

	if m == nil {
		a.deny(user.ID, teamID, "not a member")
		return nil, fmt.Errorf("user is not a member of team %s: %w", teamID, types.ErrForbidden)
	}

	if !m.Role.AtLeast(required) {
		a.deny(user.ID, teamID, fmt.Sprintf("role %s below %s", m.Role, required))
		return nil, fmt.Errorf("role %s does not grant %s: %w", m.Role, required, types.ErrForbidden)
	}

	return m, nil
}

func (a *Authorizer) deny(userID, teamID, reason string) {
	a.logger.Security().AuthzFailure(userID, TeamResource(teamID), logging.WithContext("reason", reason))
}

func elevate(m *types.Membership, teamID string, user *types.User) *types.Membership {
	if m != nil && m.Role.AtLeast(types.RoleAdmin) {
		return m
	}

	elevated := &types.Membership{TeamID: teamID, UserID: user.ID, Login: user.Login, Email: user.Email}
	if m != nil {
		*elevated = *m
	}
	elevated.Role = types.RoleAdmin

	return elevated
}

func NewAuthorizer(storage StorageInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Authorizer {
	authorizer := new(Authorizer)
	authorizer.storage = storage
	authorizer.tracer = tracer
	authorizer.monitor = monitor
	authorizer.logger = logger

	return authorizer
}
