package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/app"
	"github.com/kursadbilgin/drip-engine/internal/config"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("failed to close connections", zap.Error(closeErr))
		}
	}()
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Reporter.Flush(2 * time.Second)

	if cfg.RunInterval <= 0 {
		summary, err := a.Runner.RunOnce(ctx)
		if err != nil {
			logger.Error("campaign pass failed", zap.Error(err))
			return
		}
		logger.Info("campaign pass finished",
			zap.String("runId", summary.RunID),
			zap.Int("sent", summary.Sent),
			zap.Int("failed", summary.Failed),
		)
		return
	}

	logger.Info("campaign runner started", zap.Duration("interval", cfg.RunInterval))
	if err := a.Runner.Start(ctx); err != nil {
		logger.Error("campaign runner stopped", zap.Error(err))
	}
}
