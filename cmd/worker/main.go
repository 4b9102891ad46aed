package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vulcan-erp/vulcan-erp/internal/app"
	auditpkg "github.com/vulcan-erp/vulcan-erp/internal/audit"
	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/platform/cache"
	"github.com/vulcan-erp/vulcan-erp/internal/platform/db"
	"github.com/vulcan-erp/vulcan-erp/internal/societes"
	"github.com/vulcan-erp/vulcan-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	auditService := auditpkg.NewService(auditpkg.NewRepository(pool))
	auditTaskHandler := auditpkg.NewTaskHandler(auditService, logger)

	queryCache := authz.NewQueryCache(redisClient, "authz:search", cfg.PermissionCacheTTL)
	sweeperService := societes.NewService(
		societes.NewRepository(pool),
		cacheInvalidator{cache: queryCache},
		authz.NopSink{},
		logger,
	)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: authz.TaskAuthzAudit, Handler: auditTaskHandler},
			{Type: jobs.TaskAssignmentExpiry, Handler: jobs.NewAssignmentExpiryHandler(sweeperService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AssignmentSweepCron, Task: jobs.NewAssignmentExpiryTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// cacheInvalidator adapts the query cache to the registry's invalidation
// contract without pulling the full authz service into the worker.
type cacheInvalidator struct {
	cache *authz.QueryCache
}

func (i cacheInvalidator) Invalidate(ctx context.Context, societeID string) error {
	return i.cache.InvalidateSociete(ctx, societeID)
}
