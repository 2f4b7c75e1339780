package repository

import (
	"context"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MailboxRepository interface {
	Get(ctx context.Context, id string) (*domain.MailboxCredential, error)
	Save(ctx context.Context, credential *domain.MailboxCredential) error
	Clear(ctx context.Context, id string) error
}

type GormMailboxRepo struct {
	db *gorm.DB
}

func NewGormMailboxRepo(db *gorm.DB) *GormMailboxRepo {
	return &GormMailboxRepo{db: db}
}

func (r *GormMailboxRepo) Get(ctx context.Context, id string) (*domain.MailboxCredential, error) {
	var model MailboxCredentialModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mailboxModelToDomain(&model), nil
}

// Save upserts the credential by id.
func (r *GormMailboxRepo) Save(ctx context.Context, credential *domain.MailboxCredential) error {
	model := mailboxModelFromDomain(credential)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"address", "access_token", "refresh_token", "token_expiry", "updated_at"}),
		}).
		Create(model).Error
}

func (r *GormMailboxRepo) Clear(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&MailboxCredentialModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
