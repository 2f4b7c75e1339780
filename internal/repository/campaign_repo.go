package repository

import (
	"context"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gorm.io/gorm"
)

type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context) ([]domain.Campaign, error)
	ListActive(ctx context.Context) ([]domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) error
	Delete(ctx context.Context, id string) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, campaign *domain.Campaign) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := campaignModelFromDomain(campaign)
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		steps, err := insertSteps(tx, model.ID, campaign.Steps)
		if err != nil {
			return err
		}

		*campaign = *campaignModelToDomain(model, steps)
		return nil
	})
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	db := r.db.WithContext(ctx)

	var model CampaignModel
	err := db.First(&model, "id = ?", id).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var steps []SequenceStepModel
	if err := db.Where("campaign_id = ?", id).Order("order_index ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model, steps), nil
}

func (r *GormCampaignRepo) List(ctx context.Context) ([]domain.Campaign, error) {
	return r.list(ctx, r.db.WithContext(ctx).Order("created_at DESC"))
}

// ListActive returns campaigns bound to a segment, with their steps.
func (r *GormCampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("segment_id IS NOT NULL").Order("created_at ASC"))
}

func (r *GormCampaignRepo) list(ctx context.Context, query *gorm.DB) ([]domain.Campaign, error) {
	var models []CampaignModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return []domain.Campaign{}, nil
	}

	ids := make([]string, 0, len(models))
	for _, model := range models {
		ids = append(ids, model.ID)
	}

	var steps []SequenceStepModel
	err := r.db.WithContext(ctx).
		Where("campaign_id IN ?", ids).
		Order("order_index ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}

	byCampaign := make(map[string][]SequenceStepModel, len(models))
	for _, step := range steps {
		byCampaign[step.CampaignID] = append(byCampaign[step.CampaignID], step)
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i], byCampaign[models[i].ID]))
	}
	return campaigns, nil
}

// Update replaces the campaign fields and its steps. Ledger entries of the
// removed steps are kept so lead progress survives the edit.
func (r *GormCampaignRepo) Update(ctx context.Context, campaign *domain.Campaign) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&CampaignModel{}).
			Where("id = ?", campaign.ID).
			Updates(map[string]any{
				"name":       campaign.Name,
				"segment_id": campaign.SegmentID,
				"updated_at": campaign.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&SequenceStepModel{}).Error; err != nil {
			return err
		}
		if _, err := insertSteps(tx, campaign.ID, campaign.Steps); err != nil {
			return err
		}
		return nil
	})
}

// Delete removes the campaign, its steps and every ledger entry recorded
// against it.
func (r *GormCampaignRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", id).Delete(&LedgerEntryModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("campaign_id = ?", id).Delete(&SequenceStepModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&CampaignModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func insertSteps(tx *gorm.DB, campaignID string, steps []domain.SequenceStep) ([]SequenceStepModel, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	models := make([]SequenceStepModel, 0, len(steps))
	for _, step := range steps {
		models = append(models, stepModelFromDomain(campaignID, step))
	}
	if err := tx.Create(&models).Error; err != nil {
		if isUniqueViolationError(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return models, nil
}
