// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/canonical/teams-service/internal/cache"
	"github.com/canonical/teams-service/internal/config"
	"github.com/canonical/teams-service/internal/db"
	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/mail"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/monitoring/prometheus"
	"github.com/canonical/teams-service/internal/queue"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/pkg/notification"
	"github.com/canonical/teams-service/pkg/tokens"
)

const serviceName = "teams-service"

// app holds the dependencies shared by the serve and worker commands
type app struct {
	specs *config.EnvSpec

	dbClient *db.DBClient
	redis    *cache.Client
	storage  *storage.Storage
	queue    queue.QueueInterface
	tokens   *tokens.Service

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  *logging.Logger
}

func loadSpecs() (*config.EnvSpec, error) {
	specs := new(config.EnvSpec)
	if err := envconfig.Process(config.EnvPrefix, specs); err != nil {
		return nil, fmt.Errorf("issues with environment sourcing: %v", err)
	}

	if err := specs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	return specs, nil
}

func newApp() (*app, error) {
	specs, err := loadSpecs()
	if err != nil {
		return nil, err
	}

	a := new(app)
	a.specs = specs

	a.logger = logging.NewLogger(specs.EffectiveLogLevel())
	a.monitor = prometheus.NewMonitor(serviceName, a.logger)
	a.tracer = tracing.NewTracer(tracing.NewConfig(specs.TracingEnabled, serviceName, specs.OtelGRPCEndpoint, specs.OtelHTTPEndpoint, a.logger))

	a.dbClient, err = db.NewDBClient(
		db.Config{
			DSN:             specs.DSN,
			MaxConns:        specs.DBMaxConns,
			MinConns:        specs.DBMinConns,
			MaxConnLifetime: specs.DBMaxConnLifetime,
			MaxConnIdleTime: specs.DBMaxConnIdleTime,
			TracingEnabled:  specs.TracingEnabled,
		},
		a.tracer,
		a.monitor,
		a.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %v", err)
	}

	a.redis, err = cache.NewClient(specs.RedisURL, a.logger)
	if err != nil {
		a.dbClient.Close()
		return nil, fmt.Errorf("failed to create redis client: %v", err)
	}

	a.storage = storage.NewStorage(a.dbClient, a.tracer, a.monitor, a.logger)
	a.queue = newQueue(specs, a.redis, a.tracer, a.monitor, a.logger)
	a.tokens = tokens.NewService(
		a.storage,
		tokens.NewConfig(
			specs.SecretKey,
			specs.TokenIssuer,
			specs.AccessTokenTTL,
			specs.RefreshTokenTTL,
			specs.VerifyTokenTTL,
			specs.ResetTokenTTL,
			specs.EmailChangeTTL,
		),
		a.tracer,
		a.monitor,
		a.logger,
	)

	return a, nil
}

// newQueue picks the notification queue, the memory backend only reaches
// a worker running inside the same process
func newQueue(specs *config.EnvSpec, client *cache.Client, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) queue.QueueInterface {
	if specs.QueueBackend == config.QueueBackendMemory {
		logger.Warn("using the in-process notification queue, jobs are lost on restart")
		return queue.NewMemoryQueue()
	}

	return queue.NewRedisQueue(client.Redis(), specs.NotificationQueue, tracer, monitor, logger)
}

func (a *app) notificationWorker() *notification.Worker {
	specs := a.specs

	mailer := mail.NewMailer(
		mail.NewConfig(
			specs.MailServer,
			specs.MailPort,
			specs.MailUsername,
			specs.MailPassword,
			specs.MailFrom,
			specs.MailStartTLS,
			specs.PublicURL,
		),
		a.tracer,
		a.monitor,
		a.logger,
	)

	return notification.NewWorker(
		a.queue,
		mailer,
		notification.NewWorkerConfig(specs.WorkerMaxAttempts, specs.WorkerRetryBackoff, specs.WorkerRetryMaxDelay, specs.WorkerPollWait),
		a.tracer,
		a.monitor,
		a.logger,
	)
}

func (a *app) Close() {
	a.redis.Close()
	a.dbClient.Close()
	_ = a.logger.Sync()
}
