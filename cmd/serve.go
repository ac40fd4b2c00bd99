// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonical/teams-service/internal/authorization"
	"github.com/canonical/teams-service/internal/config"
	"github.com/canonical/teams-service/internal/password"
	"github.com/canonical/teams-service/internal/ratelimit"
	"github.com/canonical/teams-service/pkg/authentication"
	"github.com/canonical/teams-service/pkg/notification"
	"github.com/canonical/teams-service/pkg/status"
	"github.com/canonical/teams-service/pkg/team"
	"github.com/canonical/teams-service/pkg/user"
	"github.com/canonical/teams-service/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve starts the web server",
	Long:  `Launch the web application, list of environment variables is available in the readme`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	specs := a.specs
	tracer, monitor, logger := a.tracer, a.monitor, a.logger

	dispatcher := notification.NewDispatcher(a.queue, tracer, monitor, logger)
	hasher := password.NewHasher(specs.PasswordHashCost, tracer)
	authorizer := authorization.NewAuthorizer(a.storage, tracer, monitor, logger)
	limiter := ratelimit.NewLimiter(a.redis.Redis(), tracer, monitor, logger)

	authenticator := authentication.NewMiddleware(
		authentication.NewAccessTokenVerifier(a.tokens, tracer, monitor, logger),
		a.storage,
		tracer,
		monitor,
		logger,
	)

	userService := user.NewService(a.storage, a.dbClient, a.tokens, hasher, dispatcher, tracer, monitor, logger)
	teamService := team.NewService(a.storage, a.dbClient, authorizer, dispatcher, specs.InvitationLifetime, tracer, monitor, logger)

	router := web.NewRouter(
		web.NewRouterConfig(
			specs.AllowedOrigins,
			specs.RequestTimeout,
			specs.SecureCookies,
			user.Limits{Login: specs.LoginRateLimit, CodeSend: specs.CodeSendRateLimit, Window: specs.RateLimitWindow},
		),
		userService,
		teamService,
		authenticator,
		limiter,
		map[string]status.PingerInterface{"database": a.dbClient, "redis": a.redis},
		tracer,
		monitor,
		logger,
	)
	logger.Infof("Starting HTTP server on port %v", specs.Port)

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%v", specs.Port),
		WriteTimeout: time.Second * 60,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	var serverError error
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	if specs.QueueBackend == config.QueueBackendMemory {
		logger.Info("Starting in-process notification worker")

		go func() {
			defer close(workerDone)
			if err := a.notificationWorker().Run(workerCtx); err != nil {
				logger.Errorf("notification worker stopped: %v", err)
			}
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Security().SystemStartup()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError = fmt.Errorf("server error: %w", err)
			c <- os.Interrupt
		}
	}()

	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Security().SystemShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		serverError = fmt.Errorf("server shutdown error: %w", err)
	}

	stopWorker()
	<-workerDone

	return serverError
}
