package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "ekaya-bidflow",
		Short:        "Multi-tenant bid document backend",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file")

	serve := newServeCmd(&configPath)
	root.AddCommand(serve, newMigrateCmd(&configPath), newSeedCmd(&configPath))

	// Running without a subcommand starts the server.
	root.RunE = serve.RunE
	return root
}

// bootstrap loads configuration and builds the process logger.
func bootstrap(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("store", cfg.StoreBackend),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Bool("embeddings", cfg.AI.EmbeddingEnabled()))
	return cfg, logger, nil
}

// openDatabase connects to PostgreSQL with the configured pool size.
func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	connStr := cfg.Database.ConnectionString()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %s", logging.SanitizeConnectionString(connStr), logging.SanitizeError(err))
	}
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database))
	return db, nil
}

// sqlDB exposes the pool through database/sql for golang-migrate.
func sqlDB(db *database.DB) *sql.DB {
	return stdlib.OpenDBFromPool(db.Pool)
}
