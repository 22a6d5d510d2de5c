package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"gorm.io/gorm"
)

const maxListLimit = 100

type BatchRunRepository interface {
	Create(ctx context.Context, run *domain.BatchRun) error
	Update(ctx context.Context, run *domain.BatchRun) error
	GetByID(ctx context.Context, id string) (*domain.BatchRun, error)
	ListRecent(ctx context.Context, limit int) ([]domain.BatchRun, error)
}

type GormBatchRunRepo struct {
	db *gorm.DB
}

func NewGormBatchRunRepo(db *gorm.DB) *GormBatchRunRepo {
	return &GormBatchRunRepo{db: db}
}

func (r *GormBatchRunRepo) Create(ctx context.Context, run *domain.BatchRun) error {
	if run == nil {
		return fmt.Errorf("%w: run is required", domain.ErrValidation)
	}
	if err := run.Validate(); err != nil {
		return err
	}

	model := batchRunModelFromDomain(run)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*run = *batchRunModelToDomain(model)
	return nil
}

// Update overwrites the mutable columns of an existing run.
func (r *GormBatchRunRepo) Update(ctx context.Context, run *domain.BatchRun) error {
	if run == nil {
		return fmt.Errorf("%w: run is required", domain.ErrValidation)
	}
	if err := run.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&BatchRunModel{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"remote_batch_id": run.RemoteBatchID,
			"completed":       run.Completed,
			"errored":         run.Errored,
			"record_count":    run.RecordCount,
			"outcome":         run.Outcome,
			"failure_kind":    run.FailureKind,
			"failure_reason":  run.FailureReason,
			"finished_at":     run.FinishedAt,
			"updated_at":      run.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRunRepo) GetByID(ctx context.Context, id string) (*domain.BatchRun, error) {
	var model BatchRunModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchRunModelToDomain(&model), nil
}

// ListRecent returns runs newest first.
func (r *GormBatchRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.BatchRun, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var models []BatchRunModel
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	runs := make([]domain.BatchRun, 0, len(models))
	for i := range models {
		runs = append(runs, *batchRunModelToDomain(&models[i]))
	}
	return runs, nil
}
