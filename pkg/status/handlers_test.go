// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	httpTypes "github.com/canonical/teams-service/internal/http/types"
	"github.com/canonical/teams-service/internal/version"
)

//go:generate mockgen -build_flags=--mod=mod -package status -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package status -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package status -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package status -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

func mockedTracer(ctrl *gomock.Controller) *MockTracingInterface {
	mockTracer := NewMockTracingInterface(ctrl)
	mockTracer.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
			return ctx, trace.SpanFromContext(ctx)
		},
	).AnyTimes()

	return mockTracer
}

func TestAPI_Health(t *testing.T) {
	tests := []struct {
		name           string
		dbErr          error
		redisErr       error
		expectedStatus int
		expectedBody   Health
	}{
		{
			name:           "all dependencies up",
			expectedStatus: http.StatusOK,
			expectedBody:   Health{Status: "ok"},
		},
		{
			name:           "redis down",
			redisErr:       errors.New("connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody: Health{
				Status:       "unavailable",
				Dependencies: map[string]string{"database": "ok", "redis": "unavailable"},
			},
		},
		{
			name:           "both down",
			dbErr:          errors.New("timeout"),
			redisErr:       errors.New("connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody: Health{
				Status:       "unavailable",
				Dependencies: map[string]string{"database": "unavailable", "redis": "unavailable"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockDB := NewMockPingerInterface(ctrl)
			mockRedis := NewMockPingerInterface(ctrl)
			mockMonitor := NewMockMonitorInterface(ctrl)
			mockLogger := NewMockLoggerInterface(ctrl)

			mockDB.EXPECT().Ping(gomock.Any()).Return(tt.dbErr)
			mockRedis.EXPECT().Ping(gomock.Any()).Return(tt.redisErr)

			availability := func(err error) float64 {
				if err != nil {
					return 0
				}
				return 1
			}
			mockMonitor.EXPECT().SetDependencyAvailability(map[string]string{"component": "database"}, availability(tt.dbErr)).Return(nil)
			mockMonitor.EXPECT().SetDependencyAvailability(map[string]string{"component": "redis"}, availability(tt.redisErr)).Return(nil)
			mockLogger.EXPECT().Errorf(gomock.Any(), gomock.Any()).AnyTimes()

			mux := chi.NewMux()
			NewAPI(
				map[string]PingerInterface{"database": mockDB, "redis": mockRedis},
				mockedTracer(ctrl),
				mockMonitor,
				mockLogger,
			).RegisterEndpoints(mux)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/health", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			body := new(Health)
			if err := json.NewDecoder(w.Body).Decode(body); err != nil {
				t.Fatalf("decode: %v", err)
			}

			if body.Status != tt.expectedBody.Status || len(body.Dependencies) != len(tt.expectedBody.Dependencies) {
				t.Fatalf("expected %+v, got %+v", tt.expectedBody, body)
			}

			for name, status := range tt.expectedBody.Dependencies {
				if body.Dependencies[name] != status {
					t.Errorf("expected %s to be %s, got %s", name, status, body.Dependencies[name])
				}
			}
		})
	}
}

func TestAPI_Status(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockMonitor := NewMockMonitorInterface(ctrl)
	mockMonitor.EXPECT().GetService().Return("teams-service")

	mux := chi.NewMux()
	NewAPI(nil, mockedTracer(ctrl), mockMonitor, NewMockLoggerInterface(ctrl)).RegisterEndpoints(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := struct {
		httpTypes.Response
		Data BuildInfo `json:"data"`
	}{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Data.Version != version.Version || body.Data.Name != "teams-service" {
		t.Errorf("unexpected build info %+v", body.Data)
	}
}
