package service

import (
	"context"
	"io"
	"sync"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

type fakeExtractor struct {
	uploadFn      func(ctx context.Context, docs []domain.Document) (string, error)
	batchStatusFn func(ctx context.Context, batchID string) (domain.Batch, error)
	jobRecordsFn  func(ctx context.Context, jobID string) ([]domain.ExtractedRecord, error)
	downloadFn    func(ctx context.Context, req domain.ExportRequest, w io.Writer) (int64, error)

	mu       sync.Mutex
	jobCalls []string
	exports  []domain.ExportRequest
}

func (f *fakeExtractor) Upload(ctx context.Context, docs []domain.Document) (string, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, docs)
	}
	return "b1", nil
}

func (f *fakeExtractor) BatchStatus(ctx context.Context, batchID string) (domain.Batch, error) {
	if f.batchStatusFn != nil {
		return f.batchStatusFn(ctx, batchID)
	}
	return domain.Batch{ID: batchID}, nil
}

func (f *fakeExtractor) JobRecords(ctx context.Context, jobID string) ([]domain.ExtractedRecord, error) {
	f.mu.Lock()
	f.jobCalls = append(f.jobCalls, jobID)
	f.mu.Unlock()

	if f.jobRecordsFn != nil {
		return f.jobRecordsFn(ctx, jobID)
	}
	return nil, nil
}

func (f *fakeExtractor) ExportURL(req domain.ExportRequest) string {
	f.mu.Lock()
	f.exports = append(f.exports, req)
	f.mu.Unlock()
	return "https://backend.example/export-consolidated/" + req.BatchID
}

func (f *fakeExtractor) DownloadExport(ctx context.Context, req domain.ExportRequest, w io.Writer) (int64, error) {
	if f.downloadFn != nil {
		return f.downloadFn(ctx, req, w)
	}
	return 0, nil
}

func (f *fakeExtractor) jobCallsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.jobCalls))
	copy(out, f.jobCalls)
	return out
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs map[string]domain.BatchRun
	ops  []string
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]domain.BatchRun)}
}

func (f *fakeRunStore) Create(_ context.Context, run *domain.BatchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	f.ops = append(f.ops, "create:"+run.Outcome.String())
	return nil
}

func (f *fakeRunStore) Update(_ context.Context, run *domain.BatchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	f.ops = append(f.ops, "update:"+run.Outcome.String())
	return nil
}

func (f *fakeRunStore) ListRecent(_ context.Context, limit int) ([]domain.BatchRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.BatchRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunStore) all() []domain.BatchRun {
	out, _ := f.ListRecent(context.Background(), 0)
	return out
}
