package repository

import (
	"context"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultLeadPageSize = 50
	maxLeadPageSize     = 500
	leadInsertBatchSize = 100
)

var leadSortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"searchTerm": "search_term",
}

type LeadListParams struct {
	SegmentID  *string
	SortBy     string
	Descending bool
	Page       int
	PageSize   int
}

type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	CreateBatch(ctx context.Context, leads []*domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, params LeadListParams) ([]domain.Lead, int64, error)
	ListSendableBySegment(ctx context.Context, segmentID string) ([]domain.Lead, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

type GormLeadRepo struct {
	db *gorm.DB
}

func NewGormLeadRepo(db *gorm.DB) *GormLeadRepo {
	return &GormLeadRepo{db: db}
}

func (r *GormLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	model := leadModelFromDomain(lead)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if lead != nil {
		*lead = *leadModelToDomain(model)
	}
	return nil
}

func (r *GormLeadRepo) CreateBatch(ctx context.Context, leads []*domain.Lead) error {
	models := make([]LeadModel, 0, len(leads))
	modelIndexes := make([]int, 0, len(leads))
	for i, lead := range leads {
		if model := leadModelFromDomain(lead); model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}
	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, leadInsertBatchSize).Error; err != nil {
		return err
	}

	for i := range models {
		*leads[modelIndexes[i]] = *leadModelToDomain(&models[i])
	}
	return nil
}

func (r *GormLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var model LeadModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadModelToDomain(&model), nil
}

func (r *GormLeadRepo) List(ctx context.Context, params LeadListParams) ([]domain.Lead, int64, error) {
	query := r.db.WithContext(ctx).Model(&LeadModel{})
	if params.SegmentID != nil {
		query = query.Where("segment_id = ?", *params.SegmentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := leadSortColumns[params.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if params.Descending {
		direction = "DESC"
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = defaultLeadPageSize
	}
	pageSize = min(pageSize, maxLeadPageSize)

	var models []LeadModel
	err := query.
		Order(column + " " + direction).
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	leads := make([]domain.Lead, 0, len(models))
	for i := range models {
		leads = append(leads, *leadModelToDomain(&models[i]))
	}
	return leads, total, nil
}

// ListSendableBySegment returns the segment members that have an email.
func (r *GormLeadRepo) ListSendableBySegment(ctx context.Context, segmentID string) ([]domain.Lead, error) {
	var models []LeadModel
	err := r.db.WithContext(ctx).
		Where("segment_id = ? AND email IS NOT NULL AND TRIM(email) <> ''", segmentID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	leads := make([]domain.Lead, 0, len(models))
	for i := range models {
		leads = append(leads, *leadModelToDomain(&models[i]))
	}
	return leads, nil
}

func (r *GormLeadRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&LeadModel{}).Count(&total).Error
	return total, err
}

// Delete removes the lead together with its ledger entries.
func (r *GormLeadRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lead_id = ?", id).Delete(&LedgerEntryModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&LeadModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
