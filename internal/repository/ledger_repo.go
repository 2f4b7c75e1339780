package repository

import (
	"context"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository interface {
	// Record appends an entry. It reports false without error when an entry
	// for the same (lead, step) already exists.
	Record(ctx context.Context, entry *domain.LedgerEntry) (bool, error)
	ListForLeadCampaign(ctx context.Context, leadID string, campaignID string) ([]domain.LedgerEntry, error)
}

type GormLedgerRepo struct {
	db *gorm.DB
}

func NewGormLedgerRepo(db *gorm.DB) *GormLedgerRepo {
	return &GormLedgerRepo{db: db}
}

func (r *GormLedgerRepo) Record(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	model := &LedgerEntryModel{
		ID:         entry.ID,
		LeadID:     entry.LeadID,
		StepID:     entry.StepID,
		CampaignID: entry.CampaignID,
		SentAt:     entry.SentAt,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lead_id"}, {Name: "step_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		if isUniqueViolationError(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListForLeadCampaign returns the lead's entries for the campaign, including
// entries whose step has since been removed.
func (r *GormLedgerRepo) ListForLeadCampaign(ctx context.Context, leadID string, campaignID string) ([]domain.LedgerEntry, error) {
	var models []LedgerEntryModel
	err := r.db.WithContext(ctx).
		Where("lead_id = ? AND campaign_id = ?", leadID, campaignID).
		Order("sent_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(models))
	for i := range models {
		entries = append(entries, ledgerModelToDomain(&models[i]))
	}
	return entries, nil
}
