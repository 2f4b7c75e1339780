package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/app"
	"github.com/kursadbilgin/drip-engine/internal/config"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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

	server, err := a.HTTPApp()
	if err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	// An interval of zero leaves passes to POST /v1/runs or an external cron.
	if cfg.RunInterval > 0 {
		go func() {
			if err := a.Runner.Start(ctx); err != nil {
				logger.Error("campaign runner stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("drip-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.String("gateway", cfg.Gateway),
		zap.Duration("runInterval", cfg.RunInterval),
	)

	if err := server.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
	logger.Info("drip-engine api stopped")
}
