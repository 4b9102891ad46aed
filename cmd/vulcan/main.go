package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vulcan-erp/vulcan-erp/internal/app"
	auditpkg "github.com/vulcan-erp/vulcan-erp/internal/audit"
	"github.com/vulcan-erp/vulcan-erp/internal/auth"
	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/observability"
	"github.com/vulcan-erp/vulcan-erp/internal/platform/cache"
	"github.com/vulcan-erp/vulcan-erp/internal/platform/db"
	"github.com/vulcan-erp/vulcan-erp/internal/shared"
	"github.com/vulcan-erp/vulcan-erp/internal/societes"
	"github.com/vulcan-erp/vulcan-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "vulcan_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	// The permission store is shared across the guard, the query engine and
	// principal loading; coalescing keeps concurrent identical reads cheap.
	store := authz.NewSharedStore(authz.NewPGStore(dbpool))

	catalog, err := authz.LoadCatalog(ctx, store, cfg.CatalogLoadTimeout)
	if err != nil {
		logger.Error("load permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	baseline := authz.DefaultRoleBaseline()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	auditSink := authz.NewQueueSink(asynqClient, logger)

	metrics := observability.NewMetrics()

	guard := authz.NewGuard(store, baseline, auditSink, logger)
	guardMiddleware := authz.Middleware{
		Guard:    guard,
		Logger:   logger,
		Recorder: metrics.RecordDecision,
	}

	queryCache := authz.NewQueryCache(redisClient, "authz:search", cfg.PermissionCacheTTL)
	authzService := authz.NewService(store, catalog, baseline, queryCache, logger)
	authzHandler := authz.NewHandler(logger, authzService)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, store)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	societesRepo := societes.NewRepository(dbpool)
	societesService := societes.NewService(societesRepo, authzService, auditSink, logger)
	societesHandler := societes.NewHandler(logger, societesService)

	auditService := auditpkg.NewService(auditpkg.NewRepository(dbpool))
	auditHandler := auditpkg.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		PrincipalLoader: authService,
		AuthHandler:     authHandler,
		AuthzHandler:    authzHandler,
		SocietesHandler: societesHandler,
		AuditHandler:    auditHandler,
		JobsHandler:     jobsHandler,
		Guard:           guardMiddleware,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
