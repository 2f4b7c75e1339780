package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/drip-engine/internal/composer"
	"github.com/kursadbilgin/drip-engine/internal/config"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/handler"
	"github.com/kursadbilgin/drip-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/drip-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/drip-engine/internal/infra/redis"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"github.com/kursadbilgin/drip-engine/internal/queue"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"github.com/kursadbilgin/drip-engine/internal/service"
	"github.com/kursadbilgin/drip-engine/internal/tracking"
	"github.com/kursadbilgin/drip-engine/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired components shared by the api and runner binaries.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Reporter *observability.ErrorReporter

	DB        *gorm.DB
	Redis     *goredis.Client
	Publisher queue.EventPublisher

	Runner    *service.CampaignRunner
	Campaigns *service.CampaignService
	Segments  *service.SegmentService
	Leads     *service.LeadService
	Messages  *service.MessageService
	Mailbox   *service.MailboxService
	Tracking  *tracking.Service

	closers []func() error
}

// New connects the stores, runs migrations and builds every service.
// Call Close on the returned App even when later startup steps fail.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	reporter, err := observability.NewErrorReporter(observability.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}
	a.Reporter = reporter

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, postgresql.PoolConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres initialization failed: %w", err)
	}
	a.DB = db
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)

	if err := migrations.Migrate(db); err != nil {
		return a, fmt.Errorf("database migrations failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return a, fmt.Errorf("redis initialization failed: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)

	publisher, err := newPublisher(ctx, cfg.EventsAMQPURL)
	if err != nil {
		return a, err
	}
	a.Publisher = publisher
	a.closers = append(a.closers, publisher.Close)

	if err := a.wire(); err != nil {
		return a, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config

	leadRepo := repository.NewGormLeadRepo(a.DB)
	segmentRepo := repository.NewGormSegmentRepo(a.DB)
	campaignRepo := repository.NewGormCampaignRepo(a.DB)
	ledgerRepo := repository.NewGormLedgerRepo(a.DB)
	logRepo := repository.NewGormMessageLogRepo(a.DB)
	mailboxRepo := repository.NewGormMailboxRepo(a.DB)

	limiter, err := infraredis.NewRedisRateLimiter(a.Redis, infraredis.SendQuota{
		PerSecond: cfg.SendRatePerSec,
		PerDay:    cfg.SendDailyCap,
	})
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}
	locker, err := infraredis.NewRedisLocker(a.Redis)
	if err != nil {
		return fmt.Errorf("pair locker init failed: %w", err)
	}

	gw, checker, err := newGateway(cfg, mailboxRepo, a.Logger)
	if err != nil {
		return err
	}

	messageComposer, err := composer.New(cfg.TrackingBaseURL)
	if err != nil {
		return fmt.Errorf("composer init failed: %w", err)
	}

	notifier := queue.NewNotifier(a.Publisher, a.Logger)
	notifier.SetMetrics(a.Metrics)

	deliverer, err := service.NewDeliverer(gw, limiter, logRepo, notifier, cfg.MailboxID, a.Logger)
	if err != nil {
		return fmt.Errorf("deliverer init failed: %w", err)
	}
	deliverer.SetMetrics(a.Metrics)
	deliverer.SetErrorReporter(a.Reporter)

	a.Runner, err = service.NewCampaignRunner(
		campaignRepo, leadRepo, ledgerRepo, messageComposer, deliverer, locker,
		service.RunnerOptions{
			Concurrency: cfg.RunnerConcurrency,
			Interval:    cfg.RunInterval,
			LockTTL:     cfg.PairLockTTL,
		},
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("campaign runner init failed: %w", err)
	}
	a.Runner.SetMetrics(a.Metrics)
	a.Runner.SetErrorReporter(a.Reporter)

	if a.Campaigns, err = service.NewCampaignService(campaignRepo, segmentRepo, a.Logger); err != nil {
		return err
	}
	if a.Segments, err = service.NewSegmentService(segmentRepo, a.Logger); err != nil {
		return err
	}
	if a.Leads, err = service.NewLeadService(leadRepo, segmentRepo, a.Logger); err != nil {
		return err
	}
	if a.Messages, err = service.NewMessageService(leadRepo, segmentRepo, logRepo, messageComposer, deliverer, a.Logger); err != nil {
		return err
	}
	if a.Mailbox, err = service.NewMailboxService(mailboxRepo, checker, cfg.MailboxID, a.Logger); err != nil {
		return err
	}
	if a.Tracking, err = tracking.NewService(logRepo, notifier, a.Metrics, a.Logger); err != nil {
		return err
	}
	return nil
}

// HTTPApp builds the fiber app with every route group mounted.
func (a *App) HTTPApp() (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:               "drip-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(a.Logger),
	})
	app.Use(a.Metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(a.Metrics.Handler()))

	checks := []handler.ReadinessCheck{handler.RedisCheck(a.Redis)}
	if sqlDB, err := a.DB.DB(); err == nil {
		checks = append(checks, handler.PostgresCheck(sqlDB))
	}
	handler.RegisterHealthRoutes(app, checks...)

	registrations := []func() error{
		func() error { return handler.RegisterTrackingRoutes(app, a.Tracking, a.Logger) },
		func() error { return handler.RegisterCampaignRoutes(app, a.Campaigns) },
		func() error { return handler.RegisterSegmentRoutes(app, a.Segments) },
		func() error { return handler.RegisterLeadRoutes(app, a.Leads) },
		func() error { return handler.RegisterMessageRoutes(app, a.Messages) },
		func() error { return handler.RegisterMailboxRoutes(app, a.Mailbox) },
		func() error { return handler.RegisterRunRoutes(app, a.Runner) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	if a == nil {
		return nil
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newPublisher(ctx context.Context, amqpURL string) (queue.EventPublisher, error) {
	if strings.TrimSpace(amqpURL) == "" {
		return queue.NopPublisher{}, nil
	}

	client, err := queue.NewRabbitMQ(ctx, amqpURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	return queue.NewRabbitMQPublisher(client), nil
}

// newGateway picks the delivery gateway named in cfg. Only the Gmail gateway
// can check mailbox credentials, so the SMTP branch returns a nil checker.
func newGateway(cfg *config.Config, credentials gateway.CredentialStore, logger *zap.Logger) (gateway.Gateway, service.CredentialChecker, error) {
	switch cfg.Gateway {
	case config.GatewaySMTP:
		gw, err := gateway.NewSMTPGateway(gateway.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.GatewayTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("smtp gateway init failed: %w", err)
		}
		return gw, nil, nil
	case config.GatewayGmail:
		gw, err := gateway.NewGmailGateway(gateway.GmailConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			MailboxID:    cfg.MailboxID,
			APIURL:       cfg.GmailAPIURL,
			Timeout:      cfg.GatewayTimeout,
		}, credentials, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("gmail gateway init failed: %w", err)
		}
		return gw, gw, nil
	default:
		return nil, nil, fmt.Errorf("unsupported gateway %q", cfg.Gateway)
	}
}
