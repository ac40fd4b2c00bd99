// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package web

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/pkg/metrics"
	"github.com/canonical/teams-service/pkg/status"
	"github.com/canonical/teams-service/pkg/team"
	"github.com/canonical/teams-service/pkg/user"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	SecureCookies  bool
	Limits         user.Limits
}

func NewRouterConfig(allowedOrigins []string, requestTimeout time.Duration, secureCookies bool, limits user.Limits) *RouterConfig {
	c := new(RouterConfig)

	c.AllowedOrigins = allowedOrigins
	c.RequestTimeout = requestTimeout
	c.SecureCookies = secureCookies
	c.Limits = limits

	return c
}

func NewRouter(
	cfg *RouterConfig,
	users user.ServiceInterface,
	teams team.ServiceInterface,
	authenticator user.AuthenticatorInterface,
	limiter user.RateLimiterInterface,
	dependencies map[string]status.PingerInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) http.Handler {
	router := chi.NewMux()

	middlewares := make(chi.Middlewares, 0)
	middlewares = append(
		middlewares,
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		monitoring.NewMiddleware(monitor, logger).ResponseTime(),
		middlewareCORS(cfg.AllowedOrigins),
	)

	if cfg.RequestTimeout > 0 {
		middlewares = append(middlewares, middleware.Timeout(cfg.RequestTimeout))
	}

	router.Use(middlewares...)

	metrics.NewAPI(logger).RegisterEndpoints(router)
	status.NewAPI(dependencies, tracer, monitor, logger).RegisterEndpoints(router)

	user.NewAPI(users, authenticator, limiter, cfg.Limits, cfg.SecureCookies, tracer, monitor, logger).RegisterEndpoints(router)
	team.NewAPI(teams, authenticator, tracer, monitor, logger).RegisterEndpoints(router)

	return tracing.NewMiddleware(monitor, logger).OpenTelemetry(router)
}
