package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"gorm.io/gorm"
)

func createCampaignsAndSteps() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaigns_and_steps",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.CampaignModel{}, &repository.SequenceStepModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SequenceStepModel{}, &repository.CampaignModel{})
		},
	}
}
