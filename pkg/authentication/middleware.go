// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"

	httpTypes "github.com/canonical/teams-service/internal/http/types"
)

type Middleware struct {
	verifier TokenVerifierInterface
	users    UserStoreInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Authenticate resolves the bearer credential to a user and stores it in the
// request context. It never writes to storage.
func (m *Middleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := m.tracer.Start(r.Context(), "authentication.Middleware.Authenticate")
			defer span.End()

			token, found := m.getBearerToken(r.Header)
			if !found {
				token, found = m.getCookieToken(r)
			}
			if !found {
				m.unauthorizedResponse(w, errors.New("missing credentials"))
				return
			}

			userID, err := m.verifier.VerifyToken(ctx, token)
			if err != nil {
				m.logger.Debugf("access token verification failed: %v", err)
				m.unauthorizedResponse(w, err)
				return
			}

			user, err := m.users.GetUserByID(ctx, userID)
			if errors.Is(err, storage.ErrNotFound) {
				m.unauthorizedResponse(w, errors.New("unknown subject"))
				return
			}
			if err != nil {
				httpTypes.WriteError(w, err, m.logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
		})
	}
}

func (m *Middleware) getBearerToken(headers http.Header) (string, bool) {
	bearer := headers.Get("Authorization")
	if bearer == "" {
		return "", false
	}

	// Only support "Bearer <token>" format (RFC 6750)
	if !strings.HasPrefix(bearer, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
	return token, token != ""
}

func (m *Middleware) getCookieToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(AccessTokenCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (m *Middleware) unauthorizedResponse(w http.ResponseWriter, cause error) {
	httpTypes.WriteError(w, fmt.Errorf("%v: %w", cause, types.ErrUnauthenticated), m.logger)
}

func NewMiddleware(verifier TokenVerifierInterface, users UserStoreInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Middleware {
	return &Middleware{
		verifier: verifier,
		users:    users,
		tracer:   tracer,
		monitor:  monitor,
		logger:   logger,
	}
}
