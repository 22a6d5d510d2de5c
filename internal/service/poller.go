package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
)

const defaultPollInterval = 2 * time.Second

// BatchStatusFetcher returns the latest snapshot of a batch.
type BatchStatusFetcher interface {
	BatchStatus(ctx context.Context, batchID string) (domain.Batch, error)
}

// Poller fetches batch status on a fixed interval. Fetches never overlap:
// the next tick is only read after the previous fetch returned.
type Poller struct {
	fetcher  BatchStatusFetcher
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewPoller(fetcher BatchStatusFetcher, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) (*Poller, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("batch status fetcher is required")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run polls until the batch is resolved, a fetch fails, or ctx is done.
// onSnapshot receives every unresolved snapshot; the resolved one is
// returned. A single failed fetch ends the session with ErrPollFailed.
func (p *Poller) Run(ctx context.Context, batchID string, onSnapshot func(domain.Batch)) (domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := p.logger.With(zap.String("batchId", batchID))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.Batch{}, ctx.Err()
		case <-ticker.C:
		}

		batch, err := p.fetcher.BatchStatus(ctx, batchID)
		if ctx.Err() != nil {
			return domain.Batch{}, ctx.Err()
		}
		if err != nil {
			p.metrics.IncPollTick("error")
			logger.Warn("batch status poll failed", zap.Error(err))
			return domain.Batch{}, fmt.Errorf("%w: %w", domain.ErrPollFailed, err)
		}
		if batch.ID == "" {
			batch.ID = batchID
		}

		resolved := batch.Resolved()
		if batch.AllDone != resolved {
			logger.Warn("all_done disagrees with job counters",
				zap.Bool("allDone", batch.AllDone),
				zap.Int("total", batch.Total),
				zap.Int("completed", batch.Completed),
				zap.Int("errored", batch.Errored),
			)
		}

		if resolved {
			p.metrics.IncPollTick("resolved")
			logger.Info("batch resolved",
				zap.Int("completed", batch.Completed),
				zap.Int("errored", batch.Errored),
			)
			return batch, nil
		}

		p.metrics.IncPollTick("pending")
		if onSnapshot != nil {
			onSnapshot(batch)
		}
	}
}
