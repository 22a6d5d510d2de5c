package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConsolidateConcurrency = 4

// JobRecordsFetcher returns the extracted records of one completed job.
type JobRecordsFetcher interface {
	JobRecords(ctx context.Context, jobID string) ([]domain.ExtractedRecord, error)
}

// Consolidator merges the records of every completed job of a batch.
type Consolidator struct {
	fetcher     JobRecordsFetcher
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

func NewConsolidator(fetcher JobRecordsFetcher, concurrency int, metrics *observability.Metrics, logger *zap.Logger) (*Consolidator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("job records fetcher is required")
	}
	if concurrency <= 0 {
		concurrency = defaultConsolidateConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consolidator{
		fetcher:     fetcher,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// Consolidate fetches completed jobs concurrently and concatenates their
// records in job order. Errored jobs are skipped. Any failed fetch discards
// everything and returns ErrConsolidationFailed.
func (c *Consolidator) Consolidate(ctx context.Context, batch domain.Batch) ([]domain.ExtractedRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	jobs := batch.CompletedJobs()
	results := make([][]domain.ExtractedRecord, len(jobs))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			c.metrics.IncConsolidationInFlight()
			defer c.metrics.DecConsolidationInFlight()

			records, err := c.fetcher.JobRecords(groupCtx, job.ID)
			if err != nil {
				return fmt.Errorf("job %s (%s): %w", job.ID, job.Filename, err)
			}
			results[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Warn("consolidation aborted",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrConsolidationFailed, err)
	}

	total := 0
	for _, records := range results {
		total += len(records)
	}
	merged := make([]domain.ExtractedRecord, 0, total)
	for _, records := range results {
		merged = append(merged, records...)
	}

	c.metrics.ObserveConsolidationDuration(time.Since(start))
	c.logger.Info("batch consolidated",
		zap.String("batchId", batch.ID),
		zap.Int("jobs", len(jobs)),
		zap.Int("records", len(merged)),
	)
	return merged, nil
}
