package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"gorm.io/gorm"
)

func createMailboxCredentials() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_mailbox_credentials",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.MailboxCredentialModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MailboxCredentialModel{})
		},
	}
}
