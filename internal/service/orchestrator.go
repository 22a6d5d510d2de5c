package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/extraction-orchestrator/internal/dataset"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"github.com/kursadbilgin/extraction-orchestrator/internal/provider"
	"go.uber.org/zap"
)

const (
	historyBuffer       = 64
	historyWriteTimeout = 5 * time.Second
)

// BatchRunStore persists the audit trail of submissions.
type BatchRunStore interface {
	Create(ctx context.Context, run *domain.BatchRun) error
	Update(ctx context.Context, run *domain.BatchRun) error
	ListRecent(ctx context.Context, limit int) ([]domain.BatchRun, error)
}

// Failure is the last user-visible batch failure.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
	At      time.Time   `json:"at"`
}

// JobView is one job as presented next to its file.
type JobView struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Label    string `json:"label"`
}

// View is a consistent snapshot of the orchestrator.
type View struct {
	Stage        Stage     `json:"stage"`
	BatchID      string    `json:"batchId,omitempty"`
	Synthesizing bool      `json:"synthesizing"`
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	Errored      int       `json:"errored"`
	Processing   int       `json:"processing"`
	Pending      int       `json:"pending"`
	Progress     float64   `json:"progress"`
	Jobs         []JobView `json:"jobs"`
	RecordCount  int       `json:"recordCount"`
	Failure      *Failure  `json:"failure,omitempty"`
}

type historyOp struct {
	create bool
	run    domain.BatchRun
}

// Orchestrator runs one batch at a time: upload, poll, consolidate. Every
// asynchronous result carries the epoch it was started in and is dropped if
// a submit or reset happened since.
type Orchestrator struct {
	extractor    provider.Extractor
	poller       *Poller
	consolidator *Consolidator
	presenter    *dataset.Presenter
	runs         BatchRunStore
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	state      State
	epoch      uint64
	batch      *domain.Batch
	failure    *Failure
	run        *domain.BatchRun
	cancelWork context.CancelFunc
	closed     bool

	history     chan historyOp
	historyDone chan struct{}
}

func NewOrchestrator(
	extractor provider.Extractor,
	poller *Poller,
	consolidator *Consolidator,
	presenter *dataset.Presenter,
	runs BatchRunStore,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if consolidator == nil {
		return nil, fmt.Errorf("consolidator is required")
	}
	if presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		extractor:    extractor,
		poller:       poller,
		consolidator: consolidator,
		presenter:    presenter,
		runs:         runs,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		baseCtx:      baseCtx,
		baseCancel:   baseCancel,
		state:        State{Stage: StageIdle},
		historyDone:  make(chan struct{}),
	}

	if runs != nil {
		o.history = make(chan historyOp, historyBuffer)
		go o.writeHistory()
	} else {
		close(o.historyDone)
	}

	return o, nil
}

// Submit replaces whatever batch is active and uploads docs. It returns once
// the upload finished; polling continues in the background.
func (o *Orchestrator) Submit(ctx context.Context, docs []domain.Document) (string, error) {
	if err := domain.ValidateDocuments(docs); err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: orchestrator is closed", domain.ErrConflict)
	}
	o.epoch++
	epoch := o.epoch
	o.applyLocked(Submitted{FileCount: len(docs)})
	o.mu.Unlock()

	o.logger.Info("batch submitted", zap.Int("files", len(docs)))

	batchID, err := o.extractor.Upload(ctx, docs)
	if err != nil {
		o.dispatch(epoch, UploadFailed{Err: err})
		return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	if !o.dispatch(epoch, UploadSucceeded{BatchID: batchID}) {
		return "", domain.ErrSuperseded
	}

	o.logger.Info("batch uploaded", zap.String("batchId", batchID))
	return batchID, nil
}

// Reset discards the active batch and its dataset. Safe to call at any time.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.epoch++
	o.applyLocked(ResetRequested{})
}

// Close stops background work and flushes pending history writes.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.epoch++
	o.runEffectLocked(StopWork{})
	o.closed = true
	o.baseCancel()
	if o.history != nil {
		close(o.history)
	}
	o.mu.Unlock()

	<-o.historyDone
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	view := View{
		Stage:        o.state.Stage,
		BatchID:      o.state.BatchID,
		Synthesizing: o.state.Synthesizing,
		Jobs:         []JobView{},
		RecordCount:  o.presenter.Len(),
	}
	if o.failure != nil {
		f := *o.failure
		view.Failure = &f
	}
	if o.batch == nil {
		return view
	}

	b := o.batch
	view.Total = b.Total
	view.Completed = b.Completed
	view.Errored = b.Errored
	view.Processing = b.Processing
	view.Pending = b.Pending
	view.Progress = b.Progress()
	for _, job := range b.Jobs {
		view.Jobs = append(view.Jobs, JobView{
			ID:       job.ID,
			Filename: job.Filename,
			Status:   job.Status.String(),
			Label:    job.Status.Label(),
		})
	}
	return view
}

func (o *Orchestrator) Presenter() *dataset.Presenter {
	return o.presenter
}

// ExportRequest scopes an export of the finished batch to the current
// selection.
func (o *Orchestrator) ExportRequest() (domain.ExportRequest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Stage != StageSuccess || o.state.BatchID == "" {
		return domain.ExportRequest{}, fmt.Errorf("%w: no finished batch to export", domain.ErrConflict)
	}
	if o.state.Synthesizing {
		return domain.ExportRequest{}, fmt.Errorf("%w: dataset is still being consolidated", domain.ErrConflict)
	}

	req := o.presenter.ExportRequest(o.state.BatchID)
	o.metrics.IncExport(req.Scope.String())
	return req, nil
}

func (o *Orchestrator) ExportURL() (string, error) {
	req, err := o.ExportRequest()
	if err != nil {
		return "", err
	}
	return o.extractor.ExportURL(req), nil
}

func (o *Orchestrator) DownloadExport(ctx context.Context, w io.Writer) (int64, error) {
	req, err := o.ExportRequest()
	if err != nil {
		return 0, err
	}
	return o.extractor.DownloadExport(ctx, req, w)
}

// History lists recent runs, newest first. It is empty without a store.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]domain.BatchRun, error) {
	if o.runs == nil {
		return []domain.BatchRun{}, nil
	}
	return o.runs.ListRecent(ctx, limit)
}

// dispatch applies ev if epoch is still current.
func (o *Orchestrator) dispatch(epoch uint64, ev Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch || o.closed {
		o.logger.Debug("dropping stale batch event", zap.String("event", fmt.Sprintf("%T", ev)))
		return false
	}
	o.applyLocked(ev)
	return true
}

func (o *Orchestrator) applyLocked(ev Event) {
	next, effects := Transition(o.state, ev)
	if len(effects) == 0 {
		return
	}
	o.trackRunLocked(ev)
	o.state = next
	for _, effect := range effects {
		o.runEffectLocked(effect)
	}
}

func (o *Orchestrator) runEffectLocked(effect Effect) {
	switch e := effect.(type) {
	case StopWork:
		if o.cancelWork != nil {
			o.cancelWork()
			o.cancelWork = nil
		}

	case ClearData:
		o.batch = nil
		o.failure = nil
		o.presenter.Clear()

	case StartPolling:
		ctx := o.startWorkLocked(e.BatchID)
		go o.poll(ctx, o.epoch, e.BatchID)

	case PublishSnapshot:
		b := e.Batch.Clone()
		o.batch = &b

	case StartConsolidation:
		ctx := o.startWorkLocked(e.Batch.ID)
		go o.consolidate(ctx, o.epoch, e.Batch.Clone())

	case PublishDataset:
		o.presenter.Load(e.Records)
		o.metrics.AddRecordsConsolidated(len(e.Records))
		o.metrics.IncBatch("succeeded")

	case SurfaceFailure:
		o.surfaceFailureLocked(e)
	}
}

func (o *Orchestrator) startWorkLocked(batchID string) context.Context {
	if o.cancelWork != nil {
		o.cancelWork()
	}
	ctx, cancel := context.WithCancel(observability.WithBatchID(o.baseCtx, batchID))
	o.cancelWork = cancel
	return ctx
}

func (o *Orchestrator) surfaceFailureLocked(e SurfaceFailure) {
	logger := o.logger.With(zap.String("kind", string(e.Kind)), zap.Error(e.Err))

	if e.Kind == FailureAuthorization {
		o.failure = nil
		o.metrics.IncBatch("abandoned")
		logger.Info("batch abandoned, session recovery required")
		return
	}

	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
	}
	o.failure = &Failure{
		Kind:    e.Kind,
		Message: failureMessage(e.Kind),
		Detail:  detail,
		At:      o.now(),
	}
	o.metrics.IncBatch(string(e.Kind) + "_failed")
	logger.Warn("batch step failed")
}

func (o *Orchestrator) poll(ctx context.Context, epoch uint64, batchID string) {
	final, err := o.poller.Run(ctx, batchID, func(b domain.Batch) {
		o.dispatch(epoch, SnapshotReceived{Batch: b})
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.dispatch(epoch, PollFailed{Err: err})
		return
	}
	o.dispatch(epoch, SnapshotReceived{Batch: final})
}

func (o *Orchestrator) consolidate(ctx context.Context, epoch uint64, batch domain.Batch) {
	records, err := o.consolidator.Consolidate(ctx, batch)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.dispatch(epoch, ConsolidationFailed{Err: err})
		return
	}
	o.dispatch(epoch, ConsolidationSucceeded{Records: records})
}

func (o *Orchestrator) trackRunLocked(ev Event) {
	now := o.now()

	switch e := ev.(type) {
	case Submitted:
		o.finishRunLocked(domain.RunReset, "", nil)
		o.run = &domain.BatchRun{
			ID:        uuid.NewString(),
			FileCount: e.FileCount,
			Outcome:   domain.RunProcessing,
			StartedAt: now,
			UpdatedAt: now,
		}
		o.enqueueLocked(historyOp{create: true, run: *o.run})

	case ResetRequested:
		o.finishRunLocked(domain.RunReset, "", nil)

	case UploadSucceeded:
		if o.run == nil {
			return
		}
		batchID := e.BatchID
		o.run.RemoteBatchID = &batchID
		o.run.UpdatedAt = now
		o.enqueueLocked(historyOp{run: *o.run})

	case UploadFailed:
		o.finishRunLocked(domain.RunFailed, failure(FailureUpload, e.Err).Kind, e.Err)

	case PollFailed:
		o.finishRunLocked(domain.RunFailed, failure(FailurePoll, e.Err).Kind, e.Err)

	case SnapshotReceived:
		if o.run == nil || !e.Batch.Resolved() {
			return
		}
		o.run.Completed = e.Batch.Completed
		o.run.Errored = e.Batch.Errored
		o.run.UpdatedAt = now
		o.enqueueLocked(historyOp{run: *o.run})

	case ConsolidationSucceeded:
		if o.run != nil {
			o.run.RecordCount = len(e.Records)
		}
		o.finishRunLocked(domain.RunSucceeded, "", nil)

	case ConsolidationFailed:
		o.finishRunLocked(domain.RunFailed, failure(FailureConsolidation, e.Err).Kind, e.Err)
	}
}

func (o *Orchestrator) finishRunLocked(outcome domain.RunOutcome, kind FailureKind, err error) {
	if o.run == nil || o.run.Outcome.IsTerminal() {
		return
	}

	now := o.now()
	o.run.Outcome = outcome
	o.run.FinishedAt = &now
	o.run.UpdatedAt = now
	if kind != "" {
		k := string(kind)
		o.run.FailureKind = &k
	}
	if err != nil {
		reason := err.Error()
		o.run.FailureReason = &reason
	}
	o.enqueueLocked(historyOp{run: *o.run})
}

func (o *Orchestrator) enqueueLocked(op historyOp) {
	if o.history == nil || o.closed {
		return
	}

	select {
	case o.history <- op:
	default:
		o.logger.Warn("history buffer full, dropping run update", zap.String("runId", op.run.ID))
	}
}

func (o *Orchestrator) writeHistory() {
	defer close(o.historyDone)

	for op := range o.history {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		run := op.run

		var err error
		if op.create {
			err = o.runs.Create(ctx, &run)
		} else {
			err = o.runs.Update(ctx, &run)
		}
		cancel()

		if err != nil {
			o.logger.Warn("failed to record batch run",
				zap.String("runId", run.ID),
				zap.String("outcome", run.Outcome.String()),
				zap.Error(err),
			)
		}
	}
}

func failureMessage(kind FailureKind) string {
	switch kind {
	case FailureUpload:
		return "Document upload failed."
	case FailurePoll:
		return "Lost track of the batch while it was processing."
	case FailureConsolidation:
		return "The batch finished but its results could not be consolidated."
	default:
		return "The batch could not be completed."
	}
}
