package domain

import (
	"fmt"
	"strings"
)

// JobStatus is the remote processing state of a single submitted document.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pendente"
	JobStatusProcessing JobStatus = "processando"
	JobStatusCompleted  JobStatus = "concluido"
	JobStatusError      JobStatus = "erro"
)

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusError:
		return true
	}
	return false
}

// IsResolved reports whether the job reached a terminal status.
func (s JobStatus) IsResolved() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Label is the human readable status shown next to a file name.
func (s JobStatus) Label() string {
	switch s {
	case JobStatusCompleted:
		return "Completed"
	case JobStatusError:
		return "Error"
	case JobStatusProcessing:
		return "Processing"
	default:
		return "Pending"
	}
}

func ParseJobStatusFromString(s string) (JobStatus, error) {
	st := JobStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid job status %q", ErrValidation, s)
	}
	return st, nil
}

// Job is the processing unit for one document. It is never mutated on its
// own; the whole Batch snapshot is replaced instead.
type Job struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
}

// Batch is the latest status snapshot of a submitted document set.
type Batch struct {
	ID         string `json:"batch_id,omitempty"`
	Total      int    `json:"total"`
	Completed  int    `json:"concluidos"`
	Errored    int    `json:"erros"`
	Processing int    `json:"processando"`
	Pending    int    `json:"pendentes"`
	Jobs       []Job  `json:"jobs"`
	AllDone    bool   `json:"all_done"`
}

// Resolved reports whether every job finished, successfully or not.
// It is computed from the counters and does not trust AllDone.
func (b Batch) Resolved() bool {
	return b.Completed+b.Errored == b.Total
}

// Progress returns the resolved share of jobs as a percentage.
func (b Batch) Progress() float64 {
	if b.Total <= 0 {
		return 0
	}
	return float64(b.Completed+b.Errored) / float64(b.Total) * 100
}

// CompletedJobs returns the jobs whose results can be fetched, in snapshot order.
func (b Batch) CompletedJobs() []Job {
	jobs := make([]Job, 0, len(b.Jobs))
	for _, job := range b.Jobs {
		if job.Status == JobStatusCompleted {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Clone returns a copy that shares no slices with b.
func (b Batch) Clone() Batch {
	out := b
	if b.Jobs != nil {
		out.Jobs = make([]Job, len(b.Jobs))
		copy(out.Jobs, b.Jobs)
	}
	return out
}
