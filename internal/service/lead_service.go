package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"go.uber.org/zap"
)

const maxImportRows = 10000

// LeadImportRow is one record of a lead import. Segment is matched by name,
// case-insensitively, and created when missing.
type LeadImportRow struct {
	Name       string
	Email      string
	Phone      string
	Website    string
	MapsLink   string
	SearchTerm string
	Segment    string
}

type ImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Segments []string `json:"segments,omitempty"`
}

type LeadService struct {
	leads    repository.LeadRepository
	segments repository.SegmentRepository
	logger   *zap.Logger
}

func NewLeadService(
	leads repository.LeadRepository,
	segments repository.SegmentRepository,
	logger *zap.Logger,
) (*LeadService, error) {
	if leads == nil || segments == nil {
		return nil, errors.New("lead and segment repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LeadService{
		leads:    leads,
		segments: segments,
		logger:   logger,
	}, nil
}

func (s *LeadService) Create(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}
	if err := validateEmail(lead.Email); err != nil {
		return nil, err
	}
	if lead.SegmentID != nil {
		if _, err := s.segments.GetByID(ctx, *lead.SegmentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: segment %s does not exist", domain.ErrValidation, *lead.SegmentID)
			}
			return nil, err
		}
	}

	lead.ID = uuid.NewString()
	lead.Name = strings.TrimSpace(lead.Name)
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return s.leads.GetByID(ctx, id)
}

func (s *LeadService) List(ctx context.Context, params repository.LeadListParams) ([]domain.Lead, int64, error) {
	return s.leads.List(ctx, params)
}

func (s *LeadService) Count(ctx context.Context) (int64, error) {
	return s.leads.Count(ctx)
}

// Delete removes the lead together with its ledger history.
func (s *LeadService) Delete(ctx context.Context, id string) error {
	return s.leads.Delete(ctx, id)
}

// Import stores rows as new leads. Rows without a name or with a malformed
// email are skipped rather than failing the whole import.
func (s *LeadService) Import(ctx context.Context, rows []LeadImportRow) (ImportSummary, error) {
	var summary ImportSummary
	if len(rows) == 0 {
		return summary, fmt.Errorf("%w: import must include at least one lead", domain.ErrValidation)
	}
	if len(rows) > maxImportRows {
		return summary, fmt.Errorf("%w: import exceeds %d leads", domain.ErrValidation, maxImportRows)
	}

	accepted := make([]LeadImportRow, 0, len(rows))
	segmentNames := make([]string, 0)
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			summary.Skipped++
			continue
		}
		if err := validateEmail(optional(row.Email)); err != nil {
			s.logger.Debug("skipping lead with invalid email", zap.String("name", row.Name))
			summary.Skipped++
			continue
		}
		accepted = append(accepted, row)
		if name := strings.TrimSpace(row.Segment); name != "" {
			segmentNames = append(segmentNames, name)
		}
	}

	segmentIDs, err := s.segments.FindOrCreateByNames(ctx, segmentNames)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("failed to resolve segments: %w", err)
	}

	leads := make([]*domain.Lead, 0, len(accepted))
	for _, row := range accepted {
		lead := &domain.Lead{
			ID:         uuid.NewString(),
			Name:       strings.TrimSpace(row.Name),
			Email:      optional(row.Email),
			Phone:      optional(row.Phone),
			Website:    optional(row.Website),
			MapsLink:   optional(row.MapsLink),
			SearchTerm: optional(row.SearchTerm),
		}
		if id, ok := segmentIDs[strings.ToLower(strings.TrimSpace(row.Segment))]; ok {
			lead.SegmentID = &id
		}
		leads = append(leads, lead)
	}

	if err := s.leads.CreateBatch(ctx, leads); err != nil {
		return ImportSummary{}, fmt.Errorf("failed to store leads: %w", err)
	}

	summary.Imported = len(leads)
	for name := range segmentIDs {
		summary.Segments = append(summary.Segments, name)
	}
	sort.Strings(summary.Segments)

	s.logger.Info("leads imported",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("segments", len(segmentIDs)),
	)
	return summary, nil
}

func validateEmail(email *string) error {
	if email == nil {
		return nil
	}
	if err := checkmail.ValidateFormat(*email); err != nil {
		return fmt.Errorf("%w: invalid email %q", domain.ErrValidation, *email)
	}
	return nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
