// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"context"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
	"github.com/canonical/teams-service/pkg/tokens"
)

var _ TokenVerifierInterface = (*AccessTokenVerifier)(nil)

// AccessTokenVerifier accepts only stateless access tokens, refresh and
// single-use tokens fail with ErrWrongPurpose
type AccessTokenVerifier struct {
	tokens tokens.ServiceInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (v *AccessTokenVerifier) VerifyToken(ctx context.Context, rawToken string) (string, error) {
	ctx, span := v.tracer.Start(ctx, "authentication.AccessTokenVerifier.VerifyToken")
	defer span.End()

	token, err := v.tokens.Validate(ctx, rawToken, types.PurposeAccess)
	if err != nil {
		return "", err
	}

	return token.Subject, nil
}

func NewAccessTokenVerifier(tokens tokens.ServiceInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *AccessTokenVerifier {
	v := new(AccessTokenVerifier)

	v.tokens = tokens

	v.tracer = tracer
	v.monitor = monitor
	v.logger = logger

	return v
}
