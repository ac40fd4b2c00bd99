// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/canonical/teams-service/internal/config"
	"github.com/canonical/teams-service/pkg/housekeeping"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "worker delivers queued notifications",
	Long:  `Drain the notification queue and run periodic housekeeping of tokens and invitations`,
	Run: func(cmd *cobra.Command, args []string) {
		skip, _ := cmd.Flags().GetBool("no-housekeeping")

		if err := work(cmd.Context(), skip); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	workerCmd.Flags().Bool("no-housekeeping", false, "Only deliver notifications")

	rootCmd.AddCommand(workerCmd)
}

// checkWorkerBackend refuses a standalone worker on a queue it cannot share
func checkWorkerBackend(specs *config.EnvSpec) error {
	if specs.QueueBackend == config.QueueBackendMemory {
		return fmt.Errorf("the %s queue backend is drained by serve, run the worker with the %s backend", config.QueueBackendMemory, config.QueueBackendRedis)
	}

	return nil
}

func work(parent context.Context, skipHousekeeping bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	specs := a.specs
	tracer, monitor, logger := a.tracer, a.monitor, a.logger

	if err := checkWorkerBackend(specs); err != nil {
		return err
	}

	worker := a.notificationWorker()

	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(ctx) })

	if !skipHousekeeping {
		keeper := housekeeping.NewHousekeeper(a.tokens, a.storage, tracer, monitor, logger)
		if err := keeper.Schedule(specs.HousekeepingCron); err != nil {
			return err
		}

		g.Go(func() error { return keeper.Run(ctx) })
	}

	logger.Security().SystemStartup()
	err = g.Wait()
	logger.Security().SystemShutdown()

	return err
}
