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

	"github.com/Matias-Artesi/odoo-attain/internal/app"
	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/delivery"
	"github.com/Matias-Artesi/odoo-attain/internal/importer"
	"github.com/Matias-Artesi/odoo-attain/internal/masterdata"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/cache"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/db"
	"github.com/Matias-Artesi/odoo-attain/internal/sales/orders"
	"github.com/Matias-Artesi/odoo-attain/internal/shared"
	"github.com/Matias-Artesi/odoo-attain/jobs"
	"github.com/Matias-Artesi/odoo-attain/report"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, results kept in responses only", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	idempotencyStore := shared.NewIdempotencyStore(pool)

	lookup := masterdata.NewRepository(pool)
	invoiceService := ar.NewService(ar.NewRepository(pool))
	deliveryService := delivery.NewService(delivery.NewRepository(pool), logger)
	orderService := orders.NewService(logger, pool, orders.NewRepository(pool), deliveryService, invoiceService)

	var resultStore *importer.ResultStore
	if redisClient != nil {
		resultStore = importer.NewResultStore(redisClient, cfg.ImportResultTTL)
	}
	importService := importer.NewService(logger, lookup, orderService, resultStore)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	importHandler := importer.NewHandler(logger, importService, queueClient, idempotencyStore, importer.HandlerConfig{
		MaxUploadBytes:    cfg.ImportMaxUploadBytes,
		Sheet:             cfg.ImportSheet,
		ServiceProductRef: cfg.ImportServiceProduct,
		TrackedLines:      importer.TrackedLinePolicy(cfg.ImportTrackedLines),
	})

	pdfClient := report.NewClient(cfg.GotenbergURL)
	renderer, err := report.NewRenderer(pdfClient)
	if err != nil {
		logger.Error("init invoice renderer", slog.Any("error", err))
		os.Exit(1)
	}
	reportHandler := report.NewHandler(invoiceService, renderer, pdfClient, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ImportHandler: importHandler,
		ReportHandler: reportHandler,
		JobHandler:    jobHandler,
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
