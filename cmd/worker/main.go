package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Matias-Artesi/odoo-attain/internal/app"
	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/delivery"
	"github.com/Matias-Artesi/odoo-attain/internal/importer"
	jobmetrics "github.com/Matias-Artesi/odoo-attain/internal/jobs"
	"github.com/Matias-Artesi/odoo-attain/internal/masterdata"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/cache"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/db"
	"github.com/Matias-Artesi/odoo-attain/internal/sales/orders"
	"github.com/Matias-Artesi/odoo-attain/jobs"
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

	lookup := masterdata.NewRepository(pool)
	invoiceService := ar.NewService(ar.NewRepository(pool))
	deliveryService := delivery.NewService(delivery.NewRepository(pool), logger)
	orderService := orders.NewService(logger, pool, orders.NewRepository(pool), deliveryService, invoiceService)

	resultStore := importer.NewResultStore(redisClient, cfg.ImportResultTTL)
	importService := importer.NewService(logger, lookup, orderService, resultStore)

	metrics := jobmetrics.NewMetrics(nil)
	processor := jobs.NewSalesImportProcessor(importService, metrics, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Imports:   processor,
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
