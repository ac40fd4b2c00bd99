// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type QueueInterface interface {
	Enqueue(context.Context, *Job) error
	// Dequeue blocks up to wait, a nil job with a nil error means nothing arrived
	Dequeue(context.Context, time.Duration) (*Job, error)
	Retry(context.Context, *Job, time.Time) error
	DeadLetter(context.Context, *Job, string) error
}

// RedisClientInterface is the subset of go-redis the queue relies on
type RedisClientInterface interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}
