package main

import (
	"context"
	"errors"
	"os"
	"time"

	"controle/internal/amqp"
	"controle/internal/cli"
	"controle/internal/ledger"
	"controle/internal/log"
	"controle/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting controle-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	be := cli.OpenBackend(context.Background(), logger, cfg)
	if be.Journal == nil {
		logger.Warn("Backend has no command journal; redelivered commands are applied again",
			"backend", cfg.DataBackend)
	}

	opts, err := cli.LedgerOptions(cfg)
	if err != nil {
		logger.Error("Invalid ledger rules", log.FieldError, err)
		os.Exit(1)
	}
	svc := ledger.NewService(be.Table, opts)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	var journal worker.Journal
	if be.Journal != nil {
		journal = be.Journal
	}
	w := worker.NewCommandWorker(svc, journal, log.NewStructuredLogger(logger))

	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	})

	if err := w.WarmReferenceData(ctx); err != nil {
		// Don't exit - commands that need no reference data can still run
		logger.Error("Failed to load reference data", log.FieldError, err)
	}

	go func() {
		if err := amqpClient.ConsumeCommands(ctx, w.HandleCommand); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		cancel()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
