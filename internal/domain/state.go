package domain

import "time"

// CheckpointKey names the three stages tracked by the Checkpoint store.
type CheckpointKey string

const (
	CheckpointLastFetch     CheckpointKey = "last_fetch_date"
	CheckpointLastNormalize CheckpointKey = "last_normalize_date"
	CheckpointLastSummarize CheckpointKey = "last_summarize_date"
)

// DailyStateEntry tracks the last successful timestamp of each stage for one
// date; the cascade-staleness predicates are derived from these.
type DailyStateEntry struct {
	FetchedAt     *time.Time `json:"fetched_at,omitempty"`
	NormalizedAt  *time.Time `json:"normalized_at,omitempty"`
	SummarizedAt  *time.Time `json:"summarized_at,omitempty"`
}

// FailureClass classifies a FailedDate entry as permanent or retryable.
type FailureClass string

const (
	FailurePermanent FailureClass = "permanent"
	FailureRetryable FailureClass = "retryable"
)

// FailedDateEntry records why a date failed a given pipeline phase.
type FailedDateEntry struct {
	Phase         string       `json:"phase"`
	LastError     string       `json:"last_error"`
	AttemptCount  int          `json:"attempt_count"`
	ClassifiedAs  FailureClass `json:"classified_as"`
	FirstFailureAt time.Time   `json:"first_failure_at"`
}

// BatchJobStatus is the lifecycle status of a submitted provider batch.
type BatchJobStatus string

const (
	BatchInProgress BatchJobStatus = "in_progress"
	BatchCompleted  BatchJobStatus = "completed"
	BatchFailed     BatchJobStatus = "failed"
	BatchExpired    BatchJobStatus = "expired"
)

// BatchJobEntry records a provider batch id for crash recovery.
type BatchJobEntry struct {
	Provider     string         `json:"provider"`
	Task         string         `json:"task"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	Status       BatchJobStatus `json:"status"`
	CustomIDPrefix string       `json:"custom_id_prefix"`
	Size         int            `json:"size"`
}

// Terminal reports whether the batch job is in a terminal state.
func (e BatchJobEntry) Terminal() bool {
	switch e.Status {
	case BatchCompleted, BatchFailed, BatchExpired:
		return true
	default:
		return false
	}
}

// JobStatus is the lifecycle status of an externally-tracked async job (the
// HTTP API's background job store, an external collaborator — this type is
// the shape the core exposes to it).
type JobStatus string

const (
	JobAccepted  JobStatus = "accepted"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job describes one unit of externally-tracked asynchronous work.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}
