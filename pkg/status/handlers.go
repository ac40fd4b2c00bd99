// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	httpTypes "github.com/canonical/teams-service/internal/http/types"
	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/version"
)

const pingTimeout = 2 * time.Second

type API struct {
	dependencies map[string]PingerInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux *chi.Mux) {
	mux.Get("/api/v1/status", a.alive)
	mux.Get("/api/v1/monitoring/health", a.health)
}

func (a *API) alive(w http.ResponseWriter, r *http.Request) {
	_, span := a.tracer.Start(r.Context(), "status.API.alive")
	defer span.End()

	httpTypes.WriteJSON(
		w,
		http.StatusOK,
		BuildInfo{Name: a.monitor.GetService(), Version: version.Version},
		a.logger,
	)
}

// health pings every dependency, a single failure turns the response into
// a 503 listing which dependency is down
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "status.API.health")
	defer span.End()

	h := a.check(ctx)

	code := http.StatusOK
	if h.Status != statusOK {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(h); err != nil {
		a.logger.Errorf("failed to encode health response: %v", err)
	}
}

func (a *API) check(ctx context.Context) *Health {
	h := &Health{Status: statusOK}

	names := make([]string, 0, len(a.dependencies))
	for name := range a.dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := make(map[string]string)

	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := a.dependencies[name].Ping(pingCtx)
		cancel()

		available := 1.0
		if err != nil {
			a.logger.Errorf("health check of %s failed: %v", name, err)
			failed[name] = statusUnavailable
			available = 0
		}

		if mErr := a.monitor.SetDependencyAvailability(map[string]string{"component": name}, available); mErr != nil {
			a.logger.Debugf("error setting dependency availability metric: %v", mErr)
		}
	}

	if len(failed) == 0 {
		return h
	}

	h.Status = statusUnavailable
	h.Dependencies = make(map[string]string, len(names))
	for _, name := range names {
		h.Dependencies[name] = statusOK
		if s, ok := failed[name]; ok {
			h.Dependencies[name] = s
		}
	}

	return h
}

// NewAPI takes the dependencies to probe keyed by the name reported back
func NewAPI(dependencies map[string]PingerInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *API {
	a := new(API)

	a.dependencies = dependencies

	a.tracer = tracer
	a.monitor = monitor
	a.logger = logger

	return a
}
