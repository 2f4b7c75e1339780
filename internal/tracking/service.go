package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"go.uber.org/zap"
)

// OpenStore is the persistence the tracker needs from the message log.
type OpenStore interface {
	// RecordOpen marks the log entry opened, increments its open count and
	// sets the first-open time if unset. It returns domain.ErrNotFound when
	// no entry carries the token.
	RecordOpen(ctx context.Context, trackingID string, openedAt time.Time) (*domain.MessageLog, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*domain.MessageLog, error)
}

// OpenListener is notified after an open is recorded.
type OpenListener interface {
	MessageOpened(ctx context.Context, log domain.MessageLog)
}

type OpenCounter interface {
	IncMessageOpens()
}

type Service struct {
	store    OpenStore
	listener OpenListener
	metrics  OpenCounter
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store OpenStore, listener OpenListener, metrics OpenCounter, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("tracking store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:    store,
		listener: listener,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// RecordOpen registers one fetch of the pixel for token. Unknown tokens are
// not an error: (false, nil) is returned and nothing is written.
func (s *Service) RecordOpen(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	log, err := s.store.RecordOpen(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("tracking token not found", zap.String("trackingId", token))
			return false, nil
		}
		return false, fmt.Errorf("failed to record open: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncMessageOpens()
	}
	if s.listener != nil && log != nil {
		s.listener.MessageOpened(ctx, *log)
	}

	return true, nil
}

// Status returns the message log entry behind token.
func (s *Service) Status(ctx context.Context, token string) (*domain.MessageLog, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: tracking token is required", domain.ErrValidation)
	}
	return s.store.GetByTrackingID(ctx, token)
}
