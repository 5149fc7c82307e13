package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(cmd.Context(), *configPath, func(run migrationRun) error {
				return database.RunMigrations(run.db, run.path, run.logger)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(cmd.Context(), *configPath, func(run migrationRun) error {
				return database.RollbackMigrations(run.db, run.path, steps, run.logger)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

type migrationRun struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

func withMigrationDB(ctx context.Context, configPath string, fn func(migrationRun) error) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	conn := sqlDB(db)
	defer conn.Close()

	return fn(migrationRun{db: conn, path: cfg.Database.MigrationsPath, logger: logger})
}
