package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"go.uber.org/zap"
)

type CampaignService struct {
	campaigns repository.CampaignRepository
	segments  repository.SegmentRepository
	logger    *zap.Logger
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	segments repository.SegmentRepository,
	logger *zap.Logger,
) (*CampaignService, error) {
	if campaigns == nil || segments == nil {
		return nil, errors.New("campaign and segment repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignService{
		campaigns: campaigns,
		segments:  segments,
		logger:    logger,
	}, nil
}

func (s *CampaignService) Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSegment(ctx, campaign.SegmentID); err != nil {
		return nil, err
	}

	campaign.ID = uuid.NewString()
	campaign.Name = strings.TrimSpace(campaign.Name)
	for i := range campaign.Steps {
		campaign.Steps[i].ID = uuid.NewString()
		campaign.Steps[i].CampaignID = campaign.ID
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created",
		zap.String("campaignId", campaign.ID),
		zap.Int("steps", len(campaign.Steps)),
	)
	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

func (s *CampaignService) List(ctx context.Context) ([]domain.Campaign, error) {
	return s.campaigns.List(ctx)
}

// Update replaces name, segment and steps. Steps submitted with the id of an
// existing step keep that id, so leads already past it stay past it. Ledger
// history is never rewritten.
func (s *CampaignService) Update(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	if campaign == nil {
		return nil, fmt.Errorf("%w: campaign is required", domain.ErrValidation)
	}

	existing, err := s.campaigns.GetByID(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSegment(ctx, campaign.SegmentID); err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(existing.Steps))
	for i := range existing.Steps {
		known[existing.Steps[i].ID] = struct{}{}
	}

	kept := 0
	for i := range campaign.Steps {
		step := &campaign.Steps[i]
		step.CampaignID = campaign.ID
		if _, ok := known[step.ID]; ok {
			delete(known, step.ID)
			kept++
			continue
		}
		step.ID = uuid.NewString()
	}

	campaign.Name = strings.TrimSpace(campaign.Name)
	campaign.CreatedAt = existing.CreatedAt
	campaign.UpdatedAt = time.Now().UTC()
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}

	s.logger.Info("campaign updated",
		zap.String("campaignId", campaign.ID),
		zap.Int("steps", len(campaign.Steps)),
		zap.Int("keptSteps", kept),
		zap.Int("removedSteps", len(known)),
	)
	return s.campaigns.GetByID(ctx, campaign.ID)
}

func (s *CampaignService) Delete(ctx context.Context, id string) error {
	if err := s.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("campaign deleted", zap.String("campaignId", id))
	return nil
}

func (s *CampaignService) checkSegment(ctx context.Context, segmentID *string) error {
	if segmentID == nil {
		return nil
	}
	if strings.TrimSpace(*segmentID) == "" {
		return fmt.Errorf("%w: segment id must not be blank", domain.ErrValidation)
	}
	if _, err := s.segments.GetByID(ctx, *segmentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: segment %s does not exist", domain.ErrValidation, *segmentID)
		}
		return err
	}
	return nil
}
