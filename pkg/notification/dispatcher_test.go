// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/queue"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
)

//go:generate mockgen -build_flags=--mod=mod -package notification -destination ./mock_queue.go -source=../../internal/queue/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package notification -destination ./mock_mailer.go -source=../../internal/mail/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package notification -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package notification -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package notification -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

func TestDispatcher_SendEnqueues(t *testing.T) {
	q := queue.NewMemoryQueue()
	logger := logging.NewNoopLogger()
	d := NewDispatcher(q, tracing.NewNoopTracer(), monitoring.NewNoopMonitor("teams-service", logger), logger)

	d.Send(context.Background(), types.NotificationVerify, "a@example.com", "tok", nil)

	job, err := q.Dequeue(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job == nil {
		t.Fatal("expected a queued job")
	}
	if job.Kind != types.NotificationVerify || job.Recipient != "a@example.com" || job.Token != "tok" {
		t.Errorf("unexpected job %+v", job)
	}
	if job.Attempts != 0 {
		t.Errorf("new jobs start with zero attempts, got %d", job.Attempts)
	}
}

func TestDispatcher_SendSurvivesCancelledRequest(t *testing.T) {
	q := queue.NewMemoryQueue()
	logger := logging.NewNoopLogger()
	d := NewDispatcher(q, tracing.NewNoopTracer(), monitoring.NewNoopMonitor("teams-service", logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Send(ctx, types.NotificationReset, "a@example.com", "tok", nil)

	if q.Len() != 1 {
		t.Errorf("expected the job to be queued, got %d", q.Len())
	}
}

func TestDispatcher_Send(t *testing.T) {
	tests := []struct {
		name       string
		kind       types.NotificationKind
		setupMocks func(*MockQueueInterface, *MockLoggerInterface, *MockMonitorInterface)
	}{
		{
			name: "enqueue failure is logged, not returned",
			kind: types.NotificationInvitation,
			setupMocks: func(q *MockQueueInterface, l *MockLoggerInterface, m *MockMonitorInterface) {
				q.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
				l.EXPECT().Errorf(gomock.Any(), gomock.Any())
				m.EXPECT().AddNotificationDelivery(map[string]string{"kind": "invitation", "outcome": "enqueue_failed"}, float64(1)).Return(nil)
			},
		},
		{
			name: "success is counted",
			kind: types.NotificationEmailChange,
			setupMocks: func(q *MockQueueInterface, _ *MockLoggerInterface, m *MockMonitorInterface) {
				q.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)
				m.EXPECT().AddNotificationDelivery(map[string]string{"kind": "email_change", "outcome": "enqueued"}, float64(1)).Return(nil)
			},
		},
		{
			name: "unknown kind is dropped",
			kind: types.NotificationKind("sms"),
			setupMocks: func(_ *MockQueueInterface, l *MockLoggerInterface, _ *MockMonitorInterface) {
				l.EXPECT().Errorf(gomock.Any(), gomock.Any())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockQueue := NewMockQueueInterface(ctrl)
			mockTracer := NewMockTracingInterface(ctrl)
			mockMonitor := NewMockMonitorInterface(ctrl)
			mockLogger := NewMockLoggerInterface(ctrl)

			mockTracer.EXPECT().Start(gomock.Any(), "notification.Dispatcher.Send").Return(context.Background(), trace.SpanFromContext(context.Background()))
			tt.setupMocks(mockQueue, mockLogger, mockMonitor)

			d := NewDispatcher(mockQueue, mockTracer, mockMonitor, mockLogger)
			d.Send(context.Background(), tt.kind, "a@example.com", "tok", nil)
		})
	}
}
