package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/events"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/handlers"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/llm"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-bidflow/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/middleware"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories/memory"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/scheduler"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/storage"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

// backend is the persistence selected by store_backend.
type backend struct {
	store   *repositories.Store
	scoper  database.TenantScoper
	tx      database.Transactor
	tenant  handlers.TenantMiddleware
	checker handlers.StoreChecker
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("Using the in-memory store; data is lost on restart")
		return &backend{
			store:  memory.NewStore(),
			scoper: database.NoopScoper{},
			tx:     database.NoopTransactor{},
			tenant: handlers.TenantMiddleware(database.PassthroughTenantContext()),
			close:  func() {},
		}, nil
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	conn := sqlDB(db)
	err = database.RunMigrations(conn, cfg.Database.MigrationsPath, logger)
	_ = conn.Close()
	if err != nil {
		db.Close()
		return nil, err
	}

	scoper := database.NewTenantScopeProvider(db)
	return &backend{
		store:   repositories.NewPostgresStore(),
		scoper:  scoper,
		tx:      database.NewTransactor(),
		tenant:  handlers.TenantMiddleware(database.WithTenantContext(scoper, logger)),
		checker: db,
		close:   db.Close,
	}, nil
}

// newAuth builds the token validator chain and session manager.
func newAuth(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*auth.TokenIssuer, auth.TokenValidator, *auth.SessionManager, error) {
	if cfg.Auth.TokenSecret == "" {
		return nil, nil, nil, errors.New("AUTH_TOKEN_SECRET is required")
	}
	issuer, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, nil, err
	}

	var external auth.TokenValidator
	if len(cfg.Auth.JWKSEndpoints) > 0 {
		jwks, err := auth.NewJWKSClient(ctx, cfg.Auth.JWKSEndpoints)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load JWKS: %w", err)
		}
		external = jwks
		logger.Info("External token issuers enabled", zap.Int("issuers", len(cfg.Auth.JWKSEndpoints)))
	}

	var sessions *auth.SessionManager
	if cfg.Auth.SessionSecret != "" {
		sessions = auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.TokenTTL, cfg.Auth.SecureCookies)
	} else {
		logger.Info("AUTH_SESSION_SECRET not set; cookie sessions disabled")
	}

	return issuer, auth.NewIssuerRouter(issuer, external), sessions, nil
}

// newGenerator picks the model-backed generator or the rule-based fallback.
func newGenerator(cfg *config.Config, logger *zap.Logger) (services.BidGenerator, error) {
	client, err := llm.NewLLMClient(&cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	if client == nil {
		logger.Info("No AI provider configured; bids are drafted by the rule-based generator")
		return services.RuleBasedGenerator{}, nil
	}
	return services.NewLLMBidGenerator(client, cfg.AI.Temperature, logger), nil
}

func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.GenerationLimiter, func(), error) {
	client, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return services.NewLocalLimiter(cfg.Generation.MaxConcurrentPerCompany), func() {}, nil
	}
	// Slots outlive a crashed process by at most twice the generation timeout.
	limiter := services.NewRedisLimiter(client, cfg.Generation.MaxConcurrentPerCompany, 2*cfg.Generation.Timeout, logger)
	return limiter, func() { _ = client.Close() }, nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.Events.NATSURL == "" {
		return events.NoopPublisher{}, nil
	}
	return events.NewNATSPublisher(config.ResolveURLForDocker(cfg.Events.NATSURL), cfg.Events.SubjectPrefix, logger)
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	files, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}

	tokens, validator, sessions, err := newAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer validator.Close()

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}
	embedder, err := llm.NewEmbedder(&cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	m := metrics.New()
	store, tx := be.store, be.tx
	window := time.Duration(cfg.Scheduler.ExpiringWithinDays) * 24 * time.Hour

	audit := services.NewAuditService(store.OperationLogs, m, logger)
	projects := services.NewProjectService(store.Projects, audit, tx, logger)
	productSpecs := services.NewProductSpecService(store.ProductSpecs, audit, tx, logger)
	templates := services.NewBidTemplateService(store.Templates, audit, tx, logger)
	qualifications := services.NewQualificationService(store.Qualifications, audit, tx, window, logger)
	rfpItems := services.NewRFPItemService(store.RFPItems, store.Projects, audit, tx, logger)
	knowledge := services.NewKnowledgeService(store.Knowledge, embedder, cfg.AI.EmbeddingDims, audit, tx, logger)
	users := services.NewUserService(store.Users, audit, tx, logger)
	login := services.NewLoginService(store.Users, audit, be.scoper, tokens, logger)
	tasks := services.NewTaskService(store, audit, tx, publisher, m, logger)
	bids := services.NewBidService(store.GeneratedBids, audit, tx, logger)
	deviation := services.NewDeviationService(store, audit, logger)
	uploads := services.NewUploadService(files, store.Templates, audit, tx, logger)
	generation := services.NewGenerationService(services.GenerationDeps{
		Store:     store,
		Audit:     audit,
		Tx:        tx,
		Scoper:    be.scoper,
		Files:     files,
		Generator: generator,
		Embedder:  embedder,
		Limiter:   limiter,
		Publisher: publisher,
		Metrics:   m,
	}, cfg.Generation, logger)

	if cfg.Scheduler.QualificationSweepEnabled {
		sweeper := services.NewQualificationSweeper(store, audit, tx, be.scoper, window, m, logger)
		sched := scheduler.NewQualificationScheduler(sweeper, cfg.Scheduler, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	authService := auth.NewAuthService(validator, sessions, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenant := be.tenant

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, be.checker, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	handlers.NewAuthHandler(login, sessions, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewResourceHandler(models.ResourceProject, projects, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewResourceHandler(models.ResourceProductSpec, productSpecs, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewResourceHandler(models.ResourceBidTemplate, templates, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewResourceHandler(models.ResourceQualification, qualifications, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewResourceHandler[models.RFPItem](models.ResourceRFPItem, rfpItems, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewResourceHandler[models.KnowledgeChunk](models.ResourceKnowledgeChunk, knowledge, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewKnowledgeHandler(knowledge, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewProjectHandler(rfpItems, deviation, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewUserHandler(users, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewTaskHandler(tasks, generation, bids, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewBidHandler(bids, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewLogHandler(audit, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewUploadHandler(uploads, logger).RegisterRoutes(mux, authMiddleware, tenant)

	mcpServer := mcp.NewServer("ekaya-bidflow", &tools.Deps{
		Projects:  projects,
		Tasks:     tasks,
		Bids:      bids,
		Knowledge: knowledge,
		Deviation: deviation,
		Version:   cfg.Version,
		Logger:    logger,
	}, mcp.NewToolObserver(m, logger), logger)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, mcpauth.NewMiddleware(authService, logger), tenant)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-bidflow", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
