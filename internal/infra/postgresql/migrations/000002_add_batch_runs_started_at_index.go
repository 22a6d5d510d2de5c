package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addBatchRunsStartedAtIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_batch_runs_started_at_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batch_runs_started_at ON batch_runs (started_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_batch_runs_started_at`).Error
		},
	}
}
