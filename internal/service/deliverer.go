package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/drip-engine/internal/composer"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"github.com/kursadbilgin/drip-engine/internal/ratelimit"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"go.uber.org/zap"
)

// DeliveryNotifier is told about every recorded send attempt.
type DeliveryNotifier interface {
	MessageSent(ctx context.Context, log domain.MessageLog)
	MessageFailed(ctx context.Context, log domain.MessageLog)
}

type nopNotifier struct{}

func (nopNotifier) MessageSent(context.Context, domain.MessageLog)   {}
func (nopNotifier) MessageFailed(context.Context, domain.MessageLog) {}

type deliveryMeta struct {
	Type       domain.MessageType
	LeadID     *string
	CampaignID *string
	StepID     *string
}

// Deliverer is the single send path shared by campaign passes and direct
// sends. Each call waits on the mailbox rate limit, sends once and writes a
// message log entry whatever the outcome.
type Deliverer struct {
	gateway     gateway.Gateway
	rateLimiter ratelimit.RateLimiter
	logs        repository.MessageLogRepository
	notifier    DeliveryNotifier
	mailboxID   string
	logger      *zap.Logger
	metrics     *observability.Metrics
	reporter    *observability.ErrorReporter
	now         func() time.Time
}

func NewDeliverer(
	gw gateway.Gateway,
	rateLimiter ratelimit.RateLimiter,
	logs repository.MessageLogRepository,
	notifier DeliveryNotifier,
	mailboxID string,
	logger *zap.Logger,
) (*Deliverer, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if logs == nil {
		return nil, errors.New("message log repository is required")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if strings.TrimSpace(mailboxID) == "" {
		mailboxID = "default"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Deliverer{
		gateway:     gw,
		rateLimiter: rateLimiter,
		logs:        logs,
		notifier:    notifier,
		mailboxID:   mailboxID,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (d *Deliverer) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

func (d *Deliverer) SetErrorReporter(reporter *observability.ErrorReporter) {
	if d == nil {
		return
	}
	d.reporter = reporter
}

// Deliver sends msg and records the attempt. The returned error is the
// gateway failure, if any; a failure to persist the log entry is logged and
// reported but does not turn a delivered message into a failed one.
func (d *Deliverer) Deliver(ctx context.Context, msg *composer.Message, meta deliveryMeta) (domain.MessageLog, error) {
	if msg == nil {
		return domain.MessageLog{}, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}

	if d.rateLimiter != nil {
		if err := d.rateLimiter.Wait(ctx, d.mailboxID); err != nil {
			return domain.MessageLog{}, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	messageType := strings.ToLower(meta.Type.String())
	d.metrics.IncSendsInflight()
	start := d.now()
	_, sendErr := d.gateway.Send(ctx, gateway.OutboundMessage{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.Body,
	})
	d.metrics.DecSendsInflight()
	d.metrics.ObserveMessageSendDuration(messageType, d.now().Sub(start))

	log := domain.MessageLog{
		ID:             uuid.NewString(),
		TrackingID:     msg.TrackingID,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
		Content:        msg.Body,
		Status:         domain.MessageStatusSent,
		Type:           meta.Type,
		LeadID:         meta.LeadID,
		CampaignID:     meta.CampaignID,
		StepID:         meta.StepID,
		CreatedAt:      d.now().UTC(),
	}
	if sendErr != nil {
		reason := sendErr.Error()
		log.Status = domain.MessageStatusFailed
		log.Error = &reason
	}

	logger := observability.WithContextLogger(d.logger, ctx)
	if err := d.logs.Create(ctx, &log); err != nil {
		logger.Error("failed to record message log",
			zap.String("recipient", log.RecipientEmail),
			zap.String("status", log.Status.String()),
			zap.Error(err),
		)
		d.reporter.Capture(ctx, err, map[string]string{"component": "message_log"})
	}

	if sendErr != nil {
		d.metrics.IncMessageFailed(messageType, gateway.Reason(sendErr))
		d.notifier.MessageFailed(ctx, log)
		return log, sendErr
	}

	d.metrics.IncMessageSent(messageType)
	d.notifier.MessageSent(ctx, log)
	return log, nil
}
