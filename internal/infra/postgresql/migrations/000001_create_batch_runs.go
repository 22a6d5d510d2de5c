package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/extraction-orchestrator/internal/repository"
	"gorm.io/gorm"
)

func createBatchRunsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batch_runs",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.BatchRunModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchRunModel{})
		},
	}
}
