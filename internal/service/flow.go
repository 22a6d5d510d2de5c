package service

import (
	"errors"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

// Stage is the orchestrator state.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageProcessing Stage = "PROCESSING"
	StageSuccess    Stage = "SUCCESS"
)

func (s Stage) String() string { return string(s) }

// FailureKind classifies a failed batch step.
type FailureKind string

const (
	FailureUpload        FailureKind = "upload"
	FailurePoll          FailureKind = "poll"
	FailureConsolidation FailureKind = "consolidation"
	FailureAuthorization FailureKind = "authorization"
)

// State is the part of the orchestrator that transitions are computed on.
// BatchID is empty while the upload is in flight.
type State struct {
	Stage        Stage
	BatchID      string
	Synthesizing bool
}

// Event is an input to Transition.
type Event interface{ event() }

type Submitted struct{ FileCount int }
type UploadSucceeded struct{ BatchID string }
type UploadFailed struct{ Err error }
type SnapshotReceived struct{ Batch domain.Batch }
type PollFailed struct{ Err error }
type ConsolidationSucceeded struct{ Records []domain.ExtractedRecord }
type ConsolidationFailed struct{ Err error }
type ResetRequested struct{}

func (Submitted) event()              {}
func (UploadSucceeded) event()        {}
func (UploadFailed) event()           {}
func (SnapshotReceived) event()       {}
func (PollFailed) event()             {}
func (ConsolidationSucceeded) event() {}
func (ConsolidationFailed) event()    {}
func (ResetRequested) event()         {}

// Effect is work the shell performs after a transition.
type Effect interface{ effect() }

type ClearData struct{}
type StopWork struct{}
type StartPolling struct{ BatchID string }
type PublishSnapshot struct{ Batch domain.Batch }
type StartConsolidation struct{ Batch domain.Batch }
type PublishDataset struct{ Records []domain.ExtractedRecord }
type SurfaceFailure struct {
	Kind FailureKind
	Err  error
}

func (ClearData) effect()          {}
func (StopWork) effect()           {}
func (StartPolling) effect()       {}
func (PublishSnapshot) effect()    {}
func (StartConsolidation) effect() {}
func (PublishDataset) effect()     {}
func (SurfaceFailure) effect()     {}

// Transition computes the next state and its effects. Events that do not
// apply to s leave it unchanged and produce no effects.
func Transition(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Submitted:
		return State{Stage: StageProcessing}, []Effect{StopWork{}, ClearData{}}

	case ResetRequested:
		return State{Stage: StageIdle}, []Effect{StopWork{}, ClearData{}}

	case UploadSucceeded:
		if s.Stage != StageProcessing || s.BatchID != "" || e.BatchID == "" {
			return s, nil
		}
		return State{Stage: StageProcessing, BatchID: e.BatchID}, []Effect{StartPolling{BatchID: e.BatchID}}

	case UploadFailed:
		if s.Stage != StageProcessing || s.BatchID != "" {
			return s, nil
		}
		return State{Stage: StageIdle}, []Effect{ClearData{}, failure(FailureUpload, e.Err)}

	case SnapshotReceived:
		if s.Stage != StageProcessing || s.BatchID == "" || e.Batch.ID != s.BatchID {
			return s, nil
		}
		if !e.Batch.Resolved() {
			return s, []Effect{PublishSnapshot{Batch: e.Batch}}
		}
		next := State{Stage: StageSuccess, BatchID: s.BatchID, Synthesizing: true}
		return next, []Effect{PublishSnapshot{Batch: e.Batch}, StartConsolidation{Batch: e.Batch}}

	case PollFailed:
		if s.Stage != StageProcessing || s.BatchID == "" {
			return s, nil
		}
		return State{Stage: StageIdle}, []Effect{StopWork{}, ClearData{}, failure(FailurePoll, e.Err)}

	case ConsolidationSucceeded:
		if s.Stage != StageSuccess || !s.Synthesizing {
			return s, nil
		}
		next := s
		next.Synthesizing = false
		return next, []Effect{PublishDataset{Records: e.Records}}

	case ConsolidationFailed:
		if s.Stage != StageSuccess || !s.Synthesizing {
			return s, nil
		}
		next := s
		next.Synthesizing = false
		return next, []Effect{failure(FailureConsolidation, e.Err)}
	}

	return s, nil
}

// failure reclassifies authorization errors, which are handled by the
// session guardian instead of the batch flow.
func failure(kind FailureKind, err error) SurfaceFailure {
	if errors.Is(err, domain.ErrSessionExpired) {
		kind = FailureAuthorization
	}
	return SurfaceFailure{Kind: kind, Err: err}
}
