package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"controle/internal/cli"
	apphttp "controle/internal/http"
	"controle/internal/ledger"
	"controle/internal/log"
	"controle/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	be := cli.OpenBackend(context.Background(), logger, cfg)

	opts, err := cli.LedgerOptions(cfg)
	if err != nil {
		logger.Error("Invalid ledger rules", log.FieldError, err)
		os.Exit(1)
	}
	svc := ledger.NewService(be.Table, opts)

	publisher, err := cli.NewPublisher(cfg)
	if err != nil {
		// Writes still work in process; only the queue is lost.
		logger.Warn("Queued writes disabled", log.FieldError, err)
	}
	commands := services.NewCommandService(svc, publisher)

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, commands, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxyList(),
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := commands.Close(); err != nil {
			logger.Error("Failed to close publisher", log.FieldError, err)
		}
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting controle server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"queued_writes", commands.Queued(),
			"operating_month", svc.OperatingMonth().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			cancel()
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
