// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notification

import (
	"context"
	"time"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/mail"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/queue"
	"github.com/canonical/teams-service/internal/tracing"
)

const (
	deliveryTimeout = 30 * time.Second
	errorPause      = time.Second
)

type WorkerConfig struct {
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	PollWait      time.Duration
}

func NewWorkerConfig(maxAttempts int, backoff, maxDelay, pollWait time.Duration) *WorkerConfig {
	c := new(WorkerConfig)

	c.MaxAttempts = maxAttempts
	c.RetryBackoff = backoff
	c.RetryMaxDelay = maxDelay
	c.PollWait = pollWait

	return c
}

// Worker drains the notification queue. Failed deliveries are retried with
// exponential backoff, after MaxAttempts the job is dead lettered.
type Worker struct {
	queue  queue.QueueInterface
	mailer mail.MailerInterface
	cfg    *WorkerConfig
	now    func() time.Time

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Run blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infof("notification worker started, max attempts %d", w.cfg.MaxAttempts)

	for {
		if ctx.Err() != nil {
			w.logger.Info("notification worker stopped")
			return nil
		}

		job, err := w.queue.Dequeue(ctx, w.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Errorf("failed to dequeue notification: %v", err)
			w.pause(ctx)
			continue
		}

		if job == nil {
			continue
		}

		w.Process(ctx, job)
	}
}

// Process delivers a single job and schedules its retry or dead letter
func (w *Worker) Process(ctx context.Context, job *queue.Job) {
	ctx, span := w.tracer.Start(ctx, "notification.Worker.Process")
	defer span.End()

	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	err := w.mailer.Send(sendCtx, job.Notification())
	cancel()

	if err == nil {
		w.count(job, "delivered")
		return
	}

	job.Attempts++
	job.LastError = err.Error()

	// parking must survive shutdown, the job would otherwise be lost
	ctx = context.WithoutCancel(ctx)

	if job.Attempts >= w.cfg.MaxAttempts {
		w.logger.Errorf("notification %s (%s) failed %d times, dead lettering: %v", job.ID, job.Kind, job.Attempts, err)
		if dlErr := w.queue.DeadLetter(ctx, job, err.Error()); dlErr != nil {
			w.logger.Errorf("failed to dead letter notification %s: %v", job.ID, dlErr)
		}
		w.count(job, "dead_lettered")
		return
	}

	at := w.now().Add(w.Backoff(job.Attempts))
	w.logger.Warnf("notification %s (%s) attempt %d failed, retrying at %s: %v", job.ID, job.Kind, job.Attempts, at.Format(time.RFC3339), err)

	if rErr := w.queue.Retry(ctx, job, at); rErr != nil {
		w.logger.Errorf("failed to schedule retry for notification %s: %v", job.ID, rErr)
	}
	w.count(job, "retried")
}

// Backoff doubles the base delay per failed attempt, capped at RetryMaxDelay
func (w *Worker) Backoff(attempts int) time.Duration {
	d := w.cfg.RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.RetryMaxDelay {
			return w.cfg.RetryMaxDelay
		}
	}
	if d > w.cfg.RetryMaxDelay {
		return w.cfg.RetryMaxDelay
	}
	return d
}

func (w *Worker) pause(ctx context.Context) {
	t := time.NewTimer(errorPause)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) count(job *queue.Job, outcome string) {
	if err := w.monitor.AddNotificationDelivery(map[string]string{"kind": string(job.Kind), "outcome": outcome}, 1); err != nil {
		w.logger.Debugf("failed to record notification metric: %v", err)
	}
}

// WithClock replaces the time source, used by tests
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

func NewWorker(q queue.QueueInterface, mailer mail.MailerInterface, cfg *WorkerConfig, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Worker {
	w := new(Worker)

	w.queue = q
	w.mailer = mailer
	w.cfg = cfg
	w.now = time.Now

	w.tracer = tracer
	w.monitor = monitor
	w.logger = logger

	return w
}
