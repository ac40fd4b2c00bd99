// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package queue

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
)

// fakeRedis models lists and sorted sets closely enough for the queue
type fakeRedis struct {
	mu    sync.Mutex
	lists map[string][]string
	zsets map[string]map[string]float64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: make(map[string][]string), zsets: make(map[string]map[string]float64)}
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}

	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedis) BRPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewStringSliceCmd(ctx)
	for _, key := range keys {
		l := f.lists[key]
		if len(l) == 0 {
			continue
		}
		v := l[len(l)-1]
		f.lists[key] = l[:len(l)-1]
		cmd.SetVal([]string{key, v})
		return cmd
	}

	cmd.SetErr(redis.Nil)
	return cmd
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.zsets[key] == nil {
		f.zsets[key] = make(map[string]float64)
	}
	for _, m := range members {
		f.zsets[key][m.Member.(string)] = m.Score
	}

	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (f *fakeRedis) ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	max, _ := strconv.ParseFloat(opt.Max, 64)

	members := make([]string, 0)
	for m, score := range f.zsets[key] {
		if score <= max {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return f.zsets[key][members[i]] < f.zsets[key][members[j]] })

	cmd := redis.NewStringSliceCmd(ctx)
	cmd.SetVal(members)
	return cmd
}

func (f *fakeRedis) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int64
	for _, m := range members {
		if _, ok := f.zsets[key][m.(string)]; ok {
			delete(f.zsets[key], m.(string))
			removed++
		}
	}

	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func newTestRedisQueue(f *fakeRedis, now *time.Time) *RedisQueue {
	logger := logging.NewNoopLogger()
	return NewRedisQueue(f, "notifications", tracing.NewNoopTracer(), monitoring.NewNoopMonitor("teams-service", logger), logger).
		WithClock(func() time.Time { return *now })
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	now := time.Now()
	f := newFakeRedis()
	q := newTestRedisQueue(f, &now)
	ctx := context.Background()

	job := testJob(t, "a@example.com")
	job.Data = map[string]string{"team": "Platform"}

	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != job.ID || got.Recipient != job.Recipient || got.Data["team"] != "Platform" {
		t.Errorf("job did not survive the round trip: %+v", got)
	}

	got, err = q.Dequeue(ctx, time.Second)
	if err != nil || got != nil {
		t.Errorf("expected empty queue, got %v, %v", got, err)
	}
}

func TestRedisQueue_RetryIsPromotedWhenDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newFakeRedis()
	q := newTestRedisQueue(f, &now)
	ctx := context.Background()

	job := testJob(t, "a@example.com")
	job.Attempts = 1

	if err := q.Retry(ctx, job, now.Add(30*time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := q.Dequeue(ctx, time.Second); got != nil {
		t.Fatal("retry delivered before its due time")
	}

	now = now.Add(30 * time.Second)

	got, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != job.ID || got.Attempts != 1 {
		t.Fatalf("expected retried job with its attempts, got %+v", got)
	}
	if len(f.zsets["notifications:delayed"]) != 0 {
		t.Error("promoted job must leave the delayed set")
	}
}

func TestRedisQueue_DeadLetter(t *testing.T) {
	now := time.Now()
	f := newFakeRedis()
	q := newTestRedisQueue(f, &now)

	job := testJob(t, "a@example.com")

	if err := q.DeadLetter(context.Background(), job, "boom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dead := f.lists["notifications:dead"]
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}

	parked, err := decode(dead[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parked.LastError != "boom" {
		t.Errorf("expected reason boom, got %q", parked.LastError)
	}
}

func TestRedisQueue_MalformedPayload(t *testing.T) {
	now := time.Now()
	f := newFakeRedis()
	q := newTestRedisQueue(f, &now)
	ctx := context.Background()

	f.LPush(ctx, "notifications", "{not json")

	if _, err := q.Dequeue(ctx, time.Second); err == nil {
		t.Fatal("expected decode error")
	}
	if len(f.lists["notifications:dead"]) != 1 {
		t.Error("malformed payload must be dead lettered")
	}
}
