package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gorm.io/gorm"
)

type SegmentRepository interface {
	Create(ctx context.Context, segment *domain.Segment) error
	GetByID(ctx context.Context, id string) (*domain.Segment, error)
	List(ctx context.Context) ([]domain.Segment, error)
	Rename(ctx context.Context, id string, name string) error
	Delete(ctx context.Context, id string) error
	FindOrCreateByNames(ctx context.Context, names []string) (map[string]string, error)
}

type GormSegmentRepo struct {
	db *gorm.DB
}

func NewGormSegmentRepo(db *gorm.DB) *GormSegmentRepo {
	return &GormSegmentRepo{db: db}
}

func (r *GormSegmentRepo) Create(ctx context.Context, segment *domain.Segment) error {
	model := &SegmentModel{ID: segment.ID, Name: segment.Name}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolationError(err) {
			return domain.ErrConflict
		}
		return err
	}
	*segment = *segmentModelToDomain(model)
	return nil
}

func (r *GormSegmentRepo) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	var model SegmentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return segmentModelToDomain(&model), nil
}

func (r *GormSegmentRepo) List(ctx context.Context) ([]domain.Segment, error) {
	var models []SegmentModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, 0, len(models))
	for i := range models {
		segments = append(segments, *segmentModelToDomain(&models[i]))
	}
	return segments, nil
}

func (r *GormSegmentRepo) Rename(ctx context.Context, id string, name string) error {
	result := r.db.WithContext(ctx).
		Model(&SegmentModel{}).
		Where("id = ?", id).
		Update("name", name)
	if result.Error != nil {
		if isUniqueViolationError(result.Error) {
			return domain.ErrConflict
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the segment and detaches its leads and campaigns.
func (r *GormSegmentRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&LeadModel{}).Where("segment_id = ?", id).Update("segment_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&CampaignModel{}).Where("segment_id = ?", id).Update("segment_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&SegmentModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// FindOrCreateByNames resolves segment names case-insensitively, creating the
// missing ones. The result is keyed by lower-cased name.
func (r *GormSegmentRepo) FindOrCreateByNames(ctx context.Context, names []string) (map[string]string, error) {
	wanted := make(map[string]string, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := wanted[key]; !ok {
			wanted[key] = trimmed
		}
	}

	ids := make(map[string]string, len(wanted))
	if len(wanted) == 0 {
		return ids, nil
	}

	keys := make([]string, 0, len(wanted))
	for key := range wanted {
		keys = append(keys, key)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []SegmentModel
		if err := tx.Where("LOWER(name) IN ?", keys).Find(&existing).Error; err != nil {
			return err
		}
		for _, model := range existing {
			ids[strings.ToLower(model.Name)] = model.ID
		}

		for key, name := range wanted {
			if _, ok := ids[key]; ok {
				continue
			}
			model := SegmentModel{ID: uuid.NewString(), Name: name}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
			ids[key] = model.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
