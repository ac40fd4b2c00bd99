// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notification

import (
	"context"
	"time"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/queue"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
)

var _ DispatcherInterface = (*Dispatcher)(nil)

type Dispatcher struct {
	queue queue.QueueInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (d *Dispatcher) Send(ctx context.Context, kind types.NotificationKind, recipient, token string, data map[string]string) {
	ctx, span := d.tracer.Start(ctx, "notification.Dispatcher.Send")
	defer span.End()

	if !kind.Valid() {
		d.logger.Errorf("dropping notification of unknown kind %q", kind)
		return
	}

	job, err := queue.NewJob(
		types.Notification{Kind: kind, Recipient: recipient, Token: token, Data: data},
		time.Now(),
	)
	if err != nil {
		d.logger.Errorf("failed to build %s notification: %v", kind, err)
		return
	}

	// the caller's request may end right after this call
	ctx = context.WithoutCancel(ctx)

	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.logger.Errorf("failed to enqueue %s notification %s: %v", kind, job.ID, err)
		d.count(kind, "enqueue_failed")
		return
	}

	d.count(kind, "enqueued")
}

func (d *Dispatcher) count(kind types.NotificationKind, outcome string) {
	if err := d.monitor.AddNotificationDelivery(map[string]string{"kind": string(kind), "outcome": outcome}, 1); err != nil {
		d.logger.Debugf("failed to record notification metric: %v", err)
	}
}

func NewDispatcher(q queue.QueueInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Dispatcher {
	d := new(Dispatcher)

	d.queue = q

	d.tracer = tracer
	d.monitor = monitor
	d.logger = logger

	return d
}
