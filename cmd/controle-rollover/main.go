package main

import (
	"context"
	"os"
	"time"

	"controle/internal/cli"
	"controle/internal/ledger"
	"controle/internal/log"
	"controle/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRollover)
	logger.Info("Starting controle-rollover")

	cfg := cli.LoadAndValidateConfig(logger)
	be := cli.OpenBackend(context.Background(), logger, cfg)

	opts, err := cli.LedgerOptions(cfg)
	if err != nil {
		logger.Error("Invalid ledger rules", log.FieldError, err)
		os.Exit(1)
	}
	svc := ledger.NewService(be.Table, opts)

	processor := services.NewRolloverProcessor(svc, services.RolloverConfig{
		Interval: cfg.RolloverInterval,
	})

	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Failed to stop rollover processor", log.FieldError, err)
		}
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start rollover processor", log.FieldError, err)
		cancel()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Rollover processor stopped")
}
