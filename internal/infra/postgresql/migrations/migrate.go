package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// All returns the ordered migration set.
func All() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createSegmentsAndLeads(),
		createCampaignsAndSteps(),
		createLedgerEntries(),
		createMessageLogs(),
		createMailboxCredentials(),
	}
}

func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, All()).Migrate()
}

func execAll(tx *gorm.DB, statements []string) error {
	for _, sql := range statements {
		if err := tx.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}
