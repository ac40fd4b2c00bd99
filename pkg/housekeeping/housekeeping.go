// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
)

const jobTimeout = 5 * time.Minute

// Housekeeper persists what is otherwise only computed at read time:
// expired token records are purged and lapsed invitations marked expired
type Housekeeper struct {
	tokens      TokenPurgerInterface
	invitations InvitationStorageInterface

	cron *cron.Cron
	now  func() time.Time

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (h *Housekeeper) PurgeTokens(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "housekeeping.Housekeeper.PurgeTokens")
	defer span.End()

	n, err := h.tokens.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge expired tokens: %v", err)
	}

	h.logger.Debugf("purged %d expired tokens", n)

	return nil
}

func (h *Housekeeper) ExpireInvitations(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "housekeeping.Housekeeper.ExpireInvitations")
	defer span.End()

	// empty team and email select every live invitation
	n, err := h.invitations.ExpireInvitations(ctx, "", "", h.now())
	if err != nil {
		return fmt.Errorf("failed to expire invitations: %v", err)
	}

	h.logger.Debugf("marked %d invitations expired", n)

	return nil
}

// RunOnce runs every job, errors are logged and do not stop the others
func (h *Housekeeper) RunOnce(ctx context.Context) {
	for _, job := range h.jobs() {
		h.run(ctx, job.name, job.fn)
	}
}

// Schedule registers the jobs on schedule, a standard cron expression or a
// descriptor such as @hourly
func (h *Housekeeper) Schedule(schedule string) error {
	for _, job := range h.jobs() {
		if _, err := h.cron.AddFunc(schedule, func() { h.run(context.Background(), job.name, job.fn) }); err != nil {
			return fmt.Errorf("invalid housekeeping schedule %q: %v", schedule, err)
		}
	}

	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled and running
// jobs have finished
func (h *Housekeeper) Run(ctx context.Context) error {
	h.cron.Start()
	h.logger.Infof("housekeeping scheduled with %d jobs", len(h.cron.Entries()))

	<-ctx.Done()

	<-h.cron.Stop().Done()
	h.logger.Info("housekeeping stopped")

	return nil
}

type job struct {
	name string
	fn   func(context.Context) error
}

func (h *Housekeeper) jobs() []job {
	return []job{
		{"purge_tokens", h.PurgeTokens},
		{"expire_invitations", h.ExpireInvitations},
	}
}

func (h *Housekeeper) run(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		h.logger.Errorf("housekeeping job %s failed: %v", name, err)
	}
}

func (h *Housekeeper) WithClock(now func() time.Time) *Housekeeper {
	h.now = now
	return h
}

func NewHousekeeper(tokens TokenPurgerInterface, invitations InvitationStorageInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Housekeeper {
	h := new(Housekeeper)

	h.tokens = tokens
	h.invitations = invitations
	h.cron = cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	h.now = time.Now

	h.tracer = tracer
	h.monitor = monitor
	h.logger = logger

	return h
}
