package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"quantifier/internal/amqp"
	"quantifier/internal/cache"
	"quantifier/internal/cli"
	"quantifier/internal/core"
	apphttp "quantifier/internal/http"
	applog "quantifier/internal/log"
	"quantifier/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting quantifier server", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The publisher is optional: without it quantity rows simply stay
	// pending until the worker's reconciliation pass picks them up.
	var publisher services.ExportPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, exports fall back to reconciliation", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	trees := cache.NewLRUCache[*core.CategoryTree](128, 5*time.Minute)
	caches := cache.NewManager()
	caches.Register(trees)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	rollupSvc := services.NewRollupService(repo, trees)
	projectSvc := services.NewProjectService(repo, rollupSvc)
	categorySvc := services.NewCategoryService(repo, rollupSvc)
	quantitySvc := services.NewQuantityService(repo, rollupSvc, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, projectSvc, categorySvc, quantitySvc, rollupSvc)
	srv.Handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(srv.Handler)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
