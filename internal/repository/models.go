package repository

import (
	"time"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

// BatchRunModel is the persistence model for the batch_runs table.
type BatchRunModel struct {
	ID            string            `gorm:"type:uuid;primaryKey"`
	RemoteBatchID *string           `gorm:"type:varchar(255)"`
	FileCount     int               `gorm:"not null"`
	Completed     int               `gorm:"not null;default:0"`
	Errored       int               `gorm:"not null;default:0"`
	RecordCount   int               `gorm:"not null;default:0"`
	Outcome       domain.RunOutcome `gorm:"type:varchar(20);not null"`
	FailureKind   *string           `gorm:"type:varchar(20)"`
	FailureReason *string           `gorm:"type:text"`
	StartedAt     time.Time         `gorm:"not null"`
	FinishedAt    *time.Time
	UpdatedAt     time.Time
}

func (BatchRunModel) TableName() string {
	return "batch_runs"
}

func batchRunModelFromDomain(r *domain.BatchRun) *BatchRunModel {
	if r == nil {
		return nil
	}

	return &BatchRunModel{
		ID:            r.ID,
		RemoteBatchID: r.RemoteBatchID,
		FileCount:     r.FileCount,
		Completed:     r.Completed,
		Errored:       r.Errored,
		RecordCount:   r.RecordCount,
		Outcome:       r.Outcome,
		FailureKind:   r.FailureKind,
		FailureReason: r.FailureReason,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func batchRunModelToDomain(m *BatchRunModel) *domain.BatchRun {
	if m == nil {
		return nil
	}

	return &domain.BatchRun{
		ID:            m.ID,
		RemoteBatchID: m.RemoteBatchID,
		FileCount:     m.FileCount,
		Completed:     m.Completed,
		Errored:       m.Errored,
		RecordCount:   m.RecordCount,
		Outcome:       m.Outcome,
		FailureKind:   m.FailureKind,
		FailureReason: m.FailureReason,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
