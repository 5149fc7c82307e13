package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/seed"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

func newSeedCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create companies and their initial accounts from a YAML file",
		Long: `Create the companies listed in a seed file together with their users,
product parameters and qualifications. Companies that already exist are
skipped, so the command can be re-run after editing the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "seed.yaml", "Seed file to load")

	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.StoreBackend != "postgres" {
		return fmt.Errorf("seed requires the postgres store, got %q", cfg.StoreBackend)
	}

	f, err := seed.Load(file)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store := repositories.NewPostgresStore()
	audit := services.NewAuditService(store.OperationLogs, metrics.New(), logger)
	window := time.Duration(cfg.Scheduler.ExpiringWithinDays) * 24 * time.Hour

	seeder := seed.NewSeeder(store, database.NewTenantScopeProvider(db), database.NewTransactor(), audit, window, logger)
	result, err := seeder.Apply(ctx, f)
	if err != nil {
		return err
	}

	logger.Info("Seed complete",
		zap.Int("companies", result.Companies),
		zap.Int("users", result.Users),
		zap.Int("product_specs", result.ProductSpecs),
		zap.Int("qualifications", result.Qualifications))
	return nil
}
