package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunOutcome is the lifecycle state of one recorded submission.
type RunOutcome string

const (
	RunProcessing RunOutcome = "PROCESSING"
	RunSucceeded  RunOutcome = "SUCCEEDED"
	RunFailed     RunOutcome = "FAILED"
	RunReset      RunOutcome = "RESET"
)

func (o RunOutcome) String() string { return string(o) }

func (o RunOutcome) IsValid() bool {
	switch o {
	case RunProcessing, RunSucceeded, RunFailed, RunReset:
		return true
	}
	return false
}

// IsTerminal reports whether the run can no longer change.
func (o RunOutcome) IsTerminal() bool {
	return o == RunSucceeded || o == RunFailed || o == RunReset
}

func ParseRunOutcomeFromString(s string) (RunOutcome, error) {
	o := RunOutcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid run outcome %q", ErrValidation, s)
	}
	return o, nil
}

// BatchRun is the audit trail of one submission. Record contents are never
// stored, only counters.
type BatchRun struct {
	ID            string
	RemoteBatchID *string
	FileCount     int
	Completed     int
	Errored       int
	RecordCount   int
	Outcome       RunOutcome
	FailureKind   *string
	FailureReason *string
	StartedAt     time.Time
	FinishedAt    *time.Time
	UpdatedAt     time.Time
}

func (r *BatchRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrValidation)
	}
	if r.FileCount <= 0 {
		return fmt.Errorf("%w: file count must be positive", ErrValidation)
	}
	if !r.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid outcome %q", ErrValidation, r.Outcome)
	}
	return nil
}
