package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"go.uber.org/zap"
)

type SegmentService struct {
	segments repository.SegmentRepository
	logger   *zap.Logger
}

func NewSegmentService(segments repository.SegmentRepository, logger *zap.Logger) (*SegmentService, error) {
	if segments == nil {
		return nil, errors.New("segment repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentService{segments: segments, logger: logger}, nil
}

func (s *SegmentService) Create(ctx context.Context, name string) (*domain.Segment, error) {
	segment := &domain.Segment{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
	if err := segment.Validate(); err != nil {
		return nil, err
	}
	if err := s.segments.Create(ctx, segment); err != nil {
		return nil, err
	}
	return segment, nil
}

func (s *SegmentService) List(ctx context.Context) ([]domain.Segment, error) {
	return s.segments.List(ctx)
}

func (s *SegmentService) Rename(ctx context.Context, id string, name string) (*domain.Segment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: segment name is required", domain.ErrValidation)
	}
	if err := s.segments.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	return s.segments.GetByID(ctx, id)
}

// Delete removes the segment. Its leads and campaigns are detached, not
// deleted.
func (s *SegmentService) Delete(ctx context.Context, id string) error {
	if err := s.segments.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("segment deleted", zap.String("segmentId", id))
	return nil
}
