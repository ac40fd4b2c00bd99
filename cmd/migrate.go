// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/canonical/teams-service/migrations"
)

const dsnEnv = "BACKEND_DSN"

// migrateCmd performs DB migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down [version]|status|check]",
	Short: "Run database migrations",
	Long:  `Apply, roll back or inspect the embedded schema migrations, up is the default`,
	Args:  customValidArgs(),
	Run:   runMigrate(),
}

func customValidArgs() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return nil
		}

		if err := cobra.RangeArgs(0, 2)(cmd, args); err != nil {
			return err
		}

		first := args[0]
		switch first {
		case "up", "down", "status", "check":
		default:
			return fmt.Errorf("invalid first argument: %q", first)
		}

		// a target version is only accepted by down
		if len(args) == 2 {
			if first != "down" {
				return fmt.Errorf("invalid argument combination: %q", args)
			}

			if version, err := strconv.Atoi(args[1]); err != nil || version < 0 {
				return fmt.Errorf("invalid version number: %q", args[1])
			}
		}

		return nil
	}
}

func runMigrate() func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		command := "up"
		if len(args) > 0 {
			command = args[0]
		}

		version := -1
		if len(args) > 1 {
			version, _ = strconv.Atoi(args[1])
		}

		dsn, _ := cmd.Flags().GetString("dsn")
		if dsn == "" {
			dsn = os.Getenv(dsnEnv)
		}
		format, _ := cmd.Flags().GetString("format")

		if err := migrate(cmd, dsn, command, format, version); err != nil {
			cmd.PrintErrln(err)
			os.Exit(1)
		}
	}
}

func init() {
	migrateCmd.Flags().String("dsn", "", "PostgreSQL DSN connection string, defaults to $"+dsnEnv)
	migrateCmd.Flags().StringP("format", "f", "text", "Output format (text or json)")

	rootCmd.AddCommand(migrateCmd)
}

// migrator runs one goose command and reports in the requested format
type migrator struct {
	provider *goose.Provider
	json     bool
	out      io.Writer
}

func migrate(cmd *cobra.Command, dsn, command, format string, version int) error {
	if dsn == "" {
		return fmt.Errorf("no DSN given, use --dsn or set %s", dsnEnv)
	}

	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("DSN validation failed, shutting down, err: %v", err)
	}

	db := stdlib.OpenDB(*config)
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("DB connection failed, shutting down, err: %v", err)
	}

	var opts []goose.ProviderOption
	if format == "json" {
		opts = append(opts, goose.WithLogger(goose.NopLogger()))
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.EmbedMigrations, opts...)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	m := &migrator{provider: provider, json: format == "json", out: cmd.OutOrStdout()}

	switch command {
	case "up":
		return m.up(ctx)
	case "down":
		return m.down(ctx, version)
	case "status":
		return m.status(ctx)
	case "check":
		return m.check(ctx)
	}

	return nil
}

func (m *migrator) up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return err
	}

	return m.applied(results)
}

// down rolls back one migration, or every migration above version
func (m *migrator) down(ctx context.Context, version int) error {
	if version < 0 {
		result, err := m.provider.Down(ctx)
		if err != nil {
			return err
		}
		return m.applied([]*goose.MigrationResult{result})
	}

	results, err := m.provider.DownTo(ctx, int64(version))
	if err != nil {
		return err
	}

	return m.applied(results)
}

func (m *migrator) applied(results []*goose.MigrationResult) error {
	if !m.json {
		return nil
	}

	if results == nil {
		results = []*goose.MigrationResult{}
	}

	return m.encode(map[string]any{"applied": results})
}

func (m *migrator) status(ctx context.Context) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return err
	}

	if m.json {
		return m.encode(statuses)
	}

	w := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APPLIED AT\tMIGRATION")
	for _, s := range statuses {
		appliedAt := "Pending"
		if s.State == goose.StateApplied {
			appliedAt = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\n", appliedAt, s.Source.Path)
	}

	return w.Flush()
}

// check fails while migrations are pending, for use in readiness gates
func (m *migrator) check(ctx context.Context) error {
	pending, err := m.provider.HasPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to check pending migrations: %w", err)
	}

	current, verErr := m.provider.GetDBVersion(ctx)

	if pending {
		if verErr != nil {
			return fmt.Errorf("migrations are pending (failed to get current version: %v)", verErr)
		}
		if m.json {
			return m.encode(map[string]any{"status": "pending", "version": current})
		}
		return fmt.Errorf("migrations are pending: current version %d", current)
	}

	if m.json {
		status := "ok"
		if verErr != nil {
			status = "unknown"
		}
		return m.encode(map[string]any{"status": status, "version": current})
	}

	if verErr != nil {
		fmt.Fprintln(m.out, "Database is up to date")
	} else {
		fmt.Fprintf(m.out, "Database is up to date (version %d)\n", current)
	}

	return nil
}

func (m *migrator) encode(v any) error {
	return json.NewEncoder(m.out).Encode(v)
}
