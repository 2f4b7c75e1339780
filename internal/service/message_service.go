package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/kursadbilgin/drip-engine/internal/composer"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"github.com/kursadbilgin/drip-engine/internal/ratelimit"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"go.uber.org/zap"
)

// SingleSend is an ad-hoc message to one address. The body is sent as given.
type SingleSend struct {
	To      string
	Subject string
	Body    string
	Track   bool
}

// BulkSend is a one-off tracked message to every sendable lead of a segment.
// Subject and body accept the same placeholders as sequence steps.
type BulkSend struct {
	SegmentID string
	Subject   string
	Body      string
}

type BulkSummary struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

type MessageService struct {
	leads     repository.LeadRepository
	segments  repository.SegmentRepository
	logs      repository.MessageLogRepository
	composer  *composer.Composer
	deliverer *Deliverer
	logger    *zap.Logger
}

func NewMessageService(
	leads repository.LeadRepository,
	segments repository.SegmentRepository,
	logs repository.MessageLogRepository,
	messageComposer *composer.Composer,
	deliverer *Deliverer,
	logger *zap.Logger,
) (*MessageService, error) {
	if leads == nil || segments == nil || logs == nil {
		return nil, errors.New("lead, segment and message log repositories are required")
	}
	if messageComposer == nil || deliverer == nil {
		return nil, errors.New("composer and deliverer are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MessageService{
		leads:     leads,
		segments:  segments,
		logs:      logs,
		composer:  messageComposer,
		deliverer: deliverer,
		logger:    logger,
	}, nil
}

// SendSingle delivers req once. The log entry is returned even when the
// gateway rejected the message.
func (s *MessageService) SendSingle(ctx context.Context, req SingleSend) (domain.MessageLog, error) {
	to := strings.TrimSpace(req.To)
	if err := checkmail.ValidateFormat(to); err != nil {
		return domain.MessageLog{}, fmt.Errorf("%w: invalid recipient %q", domain.ErrValidation, req.To)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return domain.MessageLog{}, fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}

	msg := s.composer.ComposeRaw(to, req.Subject, req.Body, req.Track)
	return s.deliverer.Deliver(ctx, msg, deliveryMeta{Type: domain.MessageTypeSingle})
}

// SendBulk personalizes and delivers req to each sendable lead of the
// segment. Individual failures are counted; a disconnected mailbox stops the
// run since every further attempt would fail the same way.
func (s *MessageService) SendBulk(ctx context.Context, req BulkSend) (BulkSummary, error) {
	var summary BulkSummary
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		return summary, fmt.Errorf("%w: subject and body are required", domain.ErrValidation)
	}
	if _, err := s.segments.GetByID(ctx, req.SegmentID); err != nil {
		return summary, err
	}

	leads, err := s.leads.ListSendableBySegment(ctx, req.SegmentID)
	if err != nil {
		return summary, fmt.Errorf("failed to load segment leads: %w", err)
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("segmentId", req.SegmentID))
	step := domain.SequenceStep{Subject: req.Subject, Body: req.Body}
	for i := range leads {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		lead := leads[i]
		msg, err := s.composer.Compose(step, lead, true)
		if err != nil {
			continue
		}
		summary.Recipients++

		leadID := lead.ID
		if _, err := s.deliverer.Deliver(ctx, msg, deliveryMeta{Type: domain.MessageTypeBulk, LeadID: &leadID}); err != nil {
			if errors.Is(err, ratelimit.ErrQuotaExhausted) {
				summary.Recipients--
				logger.Warn("bulk send stopped on daily quota", zap.Int("sent", summary.Sent))
				return summary, err
			}
			summary.Failed++
			logger.Warn("bulk delivery failed", zap.String("leadId", lead.ID), zap.Error(err))
			if errors.Is(err, domain.ErrMailboxNotConnected) {
				return summary, err
			}
			continue
		}
		summary.Sent++
	}

	logger.Info("bulk send finished",
		zap.Int("recipients", summary.Recipients),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (s *MessageService) Stats(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return domain.MessageStats{}, fmt.Errorf("%w: invalid message type %q", domain.ErrValidation, *filter.Type)
	}
	return s.logs.Stats(ctx, filter)
}
