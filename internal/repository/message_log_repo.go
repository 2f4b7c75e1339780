package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageStatsFilter struct {
	Type           *domain.MessageType
	RecipientEmail *string
	CampaignID     *string
}

type MessageLogRepository interface {
	Create(ctx context.Context, log *domain.MessageLog) error
	GetByTrackingID(ctx context.Context, trackingID string) (*domain.MessageLog, error)
	RecordOpen(ctx context.Context, trackingID string, openedAt time.Time) (*domain.MessageLog, error)
	Stats(ctx context.Context, filter MessageStatsFilter) (domain.MessageStats, error)
}

type GormMessageLogRepo struct {
	db *gorm.DB
}

func NewGormMessageLogRepo(db *gorm.DB) *GormMessageLogRepo {
	return &GormMessageLogRepo{db: db}
}

func (r *GormMessageLogRepo) Create(ctx context.Context, log *domain.MessageLog) error {
	model := messageLogModelFromDomain(log)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolationError(err) {
			return domain.ErrConflict
		}
		return err
	}
	if log != nil {
		*log = *messageLogModelToDomain(model)
	}
	return nil
}

func (r *GormMessageLogRepo) GetByTrackingID(ctx context.Context, trackingID string) (*domain.MessageLog, error) {
	var model MessageLogModel
	err := r.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&model).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageLogModelToDomain(&model), nil
}

// RecordOpen counts one pixel fetch in a single statement so concurrent
// fetches never lose an increment. opened_at keeps the first open.
func (r *GormMessageLogRepo) RecordOpen(ctx context.Context, trackingID string, openedAt time.Time) (*domain.MessageLog, error) {
	var models []MessageLogModel
	result := r.db.WithContext(ctx).
		Model(&models).
		Clauses(clause.Returning{}).
		Where("tracking_id = ?", trackingID).
		Updates(map[string]any{
			"opened":     true,
			"open_count": gorm.Expr("open_count + 1"),
			"opened_at":  gorm.Expr("COALESCE(opened_at, ?)", openedAt),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(models) == 0 {
		return nil, domain.ErrNotFound
	}
	return messageLogModelToDomain(&models[0]), nil
}

type messageStatsRow struct {
	Total      int64 `gorm:"column:total"`
	Sent       int64 `gorm:"column:sent"`
	Failed     int64 `gorm:"column:failed"`
	Opened     int64 `gorm:"column:opened"`
	TotalOpens int64 `gorm:"column:total_opens"`
}

func (r *GormMessageLogRepo) Stats(ctx context.Context, filter MessageStatsFilter) (domain.MessageStats, error) {
	query := r.db.WithContext(ctx).Model(&MessageLogModel{})
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.RecipientEmail != nil {
		query = query.Where("recipient_email = ?", *filter.RecipientEmail)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}

	var row messageStatsRow
	err := query.Select(
		"COUNT(*) AS total, "+
			"COUNT(*) FILTER (WHERE status = ?) AS sent, "+
			"COUNT(*) FILTER (WHERE status = ?) AS failed, "+
			"COUNT(*) FILTER (WHERE opened) AS opened, "+
			"COALESCE(SUM(open_count), 0) AS total_opens",
		domain.MessageStatusSent, domain.MessageStatusFailed,
	).Scan(&row).Error
	if err != nil {
		return domain.MessageStats{}, err
	}

	return domain.MessageStats{
		Total:      row.Total,
		Sent:       row.Sent,
		Failed:     row.Failed,
		Opened:     row.Opened,
		TotalOpens: row.TotalOpens,
	}, nil
}
