package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"gorm.io/gorm"
)

func createSegmentsAndLeads() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_segments_and_leads",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SegmentModel{}, &repository.LeadModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_segments_name_lower ON segments (LOWER(name))`,
				`CREATE INDEX IF NOT EXISTS idx_leads_segment_sendable ON leads (segment_id) WHERE email IS NOT NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LeadModel{}, &repository.SegmentModel{})
		},
	}
}
