// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"

	httpTypes "github.com/canonical/teams-service/internal/http/types"
	domain "github.com/canonical/teams-service/internal/types"
)

const (
	keyPrefix      = "teams:ratelimit:"
	commandTimeout = 250 * time.Millisecond
)

var _ LimiterInterface = (*Limiter)(nil)

// Limiter is a fixed window counter in redis. It fails open: when redis is
// unavailable every request is allowed.
type Limiter struct {
	client CounterInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	ctx, span := l.tracer.Start(ctx, "ratelimit.Limiter.Allow")
	defer span.End()

	if limit <= 0 {
		return true
	}
	if window <= 0 {
		window = time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	redisKey := keyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warnf("rate limiter incr failed, allowing request: %v", err)
		return true
	}

	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			l.logger.Warnf("rate limiter expire failed: %v", err)
		}
	}

	return count <= int64(limit)
}

// Middleware limits requests per client address within scope
func (l *Limiter) Middleware(scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("%s:%s", scope, clientIP(r))

			if !l.Allow(r.Context(), key, limit, window) {
				l.logger.Security().AuthzFailure("", scope, logging.WithRequest(clientIP(r), r.UserAgent()), logging.WithContext("reason", "rate_limited"))

				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				httpTypes.WriteError(w, fmt.Errorf("too many requests for %s: %w", scope, domain.ErrRateLimited), l.logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func NewLimiter(client CounterInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Limiter {
	l := new(Limiter)

	l.client = client

	l.tracer = tracer
	l.monitor = monitor
	l.logger = logger

	return l
}
