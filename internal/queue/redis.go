// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
)

const promoteBatch = 100

var _ QueueInterface = (*RedisQueue)(nil)

// RedisQueue keeps ready jobs in a list, delayed retries in a sorted set
// scored by due time and exhausted jobs in a dead-letter list
type RedisQueue struct {
	client RedisClientInterface

	ready   string
	delayed string
	dead    string

	now func() time.Time

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	ctx, span := q.tracer.Start(ctx, "queue.RedisQueue.Enqueue")
	defer span.End()

	raw, err := encode(job)
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, q.ready, raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	ctx, span := q.tracer.Start(ctx, "queue.RedisQueue.Dequeue")
	defer span.End()

	if err := q.promote(ctx); err != nil {
		q.logger.Warnf("failed to promote delayed jobs: %v", err)
	}

	res, err := q.client.BRPop(ctx, wait, q.ready).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	// BRPOP replies with the key followed by the value
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}

	job, err := decode(res[1])
	if err != nil {
		// an undecodable payload can never succeed, park it
		if dlErr := q.client.LPush(ctx, q.dead, res[1]).Err(); dlErr != nil {
			q.logger.Errorf("failed to dead letter malformed job: %v", dlErr)
		}
		return nil, err
	}

	return job, nil
}

func (q *RedisQueue) Retry(ctx context.Context, job *Job, at time.Time) error {
	ctx, span := q.tracer.Start(ctx, "queue.RedisQueue.Retry")
	defer span.End()

	job.NotBefore = at

	raw, err := encode(job)
	if err != nil {
		return err
	}

	z := redis.Z{Score: float64(at.UnixMilli()), Member: raw}
	if err := q.client.ZAdd(ctx, q.delayed, z).Err(); err != nil {
		return fmt.Errorf("failed to schedule retry for job %s: %w", job.ID, err)
	}

	return nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, job *Job, reason string) error {
	ctx, span := q.tracer.Start(ctx, "queue.RedisQueue.DeadLetter")
	defer span.End()

	job.LastError = reason

	raw, err := encode(job)
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, q.dead, raw).Err(); err != nil {
		return fmt.Errorf("failed to dead letter job %s: %w", job.ID, err)
	}

	return nil
}

// promote moves due delayed jobs to the ready list. ZREM decides ownership
// when several workers race on the same member.
func (q *RedisQueue) promote(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, q.delayed, raw).Result()
		if err != nil {
			return err
		}
		if removed != 1 {
			continue
		}
		if err := q.client.LPush(ctx, q.ready, raw).Err(); err != nil {
			return err
		}
	}

	return nil
}

// WithClock replaces the time source, used by tests
func (q *RedisQueue) WithClock(now func() time.Time) *RedisQueue {
	q.now = now
	return q
}

func NewRedisQueue(client RedisClientInterface, name string, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *RedisQueue {
	q := new(RedisQueue)

	q.client = client
	q.ready = name
	q.delayed = name + ":delayed"
	q.dead = name + ":dead"
	q.now = time.Now

	q.tracer = tracer
	q.monitor = monitor
	q.logger = logger

	return q
}
