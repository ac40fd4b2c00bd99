// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package queue

import (
	"context"
	"sync"
	"time"
)

const memoryPollInterval = 20 * time.Millisecond

var _ QueueInterface = (*MemoryQueue)(nil)

// MemoryQueue is a process local queue for tests and single process runs
type MemoryQueue struct {
	mu      sync.Mutex
	ready   []*Job
	delayed []*Job
	dead    []*Job

	signal chan struct{}
	now    func() time.Time
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *Job) error {
	q.mu.Lock()
	q.ready = append(q.ready, job)
	q.mu.Unlock()

	q.notify()

	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()

	ticker := time.NewTicker(memoryPollInterval)
	defer ticker.Stop()

	for {
		if job := q.pop(); job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, nil
		case <-q.signal:
		case <-ticker.C:
		}
	}
}

func (q *MemoryQueue) Retry(_ context.Context, job *Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.NotBefore = at
	q.delayed = append(q.delayed, job)

	return nil
}

func (q *MemoryQueue) DeadLetter(_ context.Context, job *Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.LastError = reason
	q.dead = append(q.dead, job)

	return nil
}

// Dead returns a copy of the dead-letter list
func (q *MemoryQueue) Dead() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]*Job(nil), q.dead...)
}

// Len counts ready and delayed jobs
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ready) + len(q.delayed)
}

func (q *MemoryQueue) pop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	pending := q.delayed[:0]
	for _, j := range q.delayed {
		if !now.Before(j.NotBefore) {
			q.ready = append(q.ready, j)
			continue
		}
		pending = append(pending, j)
	}
	q.delayed = pending

	if len(q.ready) == 0 {
		return nil
	}

	job := q.ready[0]
	q.ready = q.ready[1:]

	return job
}

func (q *MemoryQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// WithClock replaces the time source, used by tests
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.now = now
	return q
}

func NewMemoryQueue() *MemoryQueue {
	q := new(MemoryQueue)

	q.signal = make(chan struct{}, 1)
	q.now = time.Now

	return q
}
