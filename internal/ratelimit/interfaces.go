// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type LimiterInterface interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

// CounterInterface is the subset of redis commands the limiter needs
type CounterInterface interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}
