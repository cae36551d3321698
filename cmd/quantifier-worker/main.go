package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"quantifier/internal/amqp"
	"quantifier/internal/backend"
	"quantifier/internal/cli"
	applog "quantifier/internal/log"
	"quantifier/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting quantifier-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	rootCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	exporter, err := backend.NewExporter(rootCtx, backend.Type(cfg.ExportBackend), logger)
	if err != nil {
		logger.Error("Failed to initialize export backend", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, exporter, cfg.ExportBatchSize)

	// Drain anything that went pending while the worker was down.
	if err := exportWorker.StartupCheck(rootCtx); err != nil {
		logger.Error("Startup export check failed", applog.FieldError, err)
		// Keep running: the periodic pass retries pending rows.
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		err := amqpClient.ConsumeExports(ctx, func(msg *amqp.ExportMessage) error {
			return exportWorker.HandleExportMessage(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume exports: %w", err)
		}
		return nil
	})

	// Reconciliation: picks up rows whose messages were lost or nacked.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := exportWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic export failed", applog.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(rootCtx, done)
	logger.Info("Worker stopped gracefully")
}
