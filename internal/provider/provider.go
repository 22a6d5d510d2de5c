package provider

import (
	"context"
	"io"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

// Extractor is the outbound port to the remote extraction service.
type Extractor interface {
	Upload(ctx context.Context, docs []domain.Document) (string, error)
	BatchStatus(ctx context.Context, batchID string) (domain.Batch, error)
	JobRecords(ctx context.Context, jobID string) ([]domain.ExtractedRecord, error)
	ExportURL(req domain.ExportRequest) string
	DownloadExport(ctx context.Context, req domain.ExportRequest, w io.Writer) (int64, error)
}

// UnauthorizedNotifier is told about every 401/403 response.
type UnauthorizedNotifier interface {
	ReportUnauthorized(ctx context.Context)
}
