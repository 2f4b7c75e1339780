package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"gorm.io/gorm"
)

// Ledger rows carry no foreign key to sequence_steps: entries must outlive
// steps replaced by a campaign edit.
func createLedgerEntries() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_ledger_entries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.LedgerEntryModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_ledger_entries_lead_campaign ON ledger_entries (lead_id, campaign_id, sent_at)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LedgerEntryModel{})
		},
	}
}
