package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openstatushq/entitlements/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var (
		dbURL   string
		list    bool
		showVer bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				migrations, err := db.GetMigrations()
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintf(cmd.OutOrStdout(), "%03d  %s\n", m.Version, m.Name)
				}
				return nil
			}

			if dbURL == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				dbURL = cfg.DatabaseURL
			}
			if dbURL == "" {
				return errors.New("database URL required: use --db or set DATABASE_URL")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			cfg := db.DefaultConfig(dbURL)
			cfg.MaxConns = 2
			database, err := db.New(ctx, cfg, opts.logger)
			if err != nil {
				return err
			}
			defer database.Close()

			if !showVer {
				opts.logger.Info().Msg("running database migrations")
				if err := database.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current schema version: %d\n", version)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbURL, "db", "", "Database URL (default DATABASE_URL)")
	cmd.Flags().BoolVar(&list, "list", false, "List embedded migrations")
	cmd.Flags().BoolVar(&showVer, "version", false, "Show the current schema version without migrating")
	return cmd
}
