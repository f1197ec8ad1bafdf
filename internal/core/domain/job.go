package domain

import "time"

// JobStatus is the state of an ingestion job.
type JobStatus string

// Job states. A job moves queued → running → done|failed and never
// re-enters queued except through an explicit re-ingestion request.
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobDone, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// CanTransition reports whether the state machine allows s → to.
// Re-queueing is only permitted from a terminal state (re-ingestion).
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobQueued:
		return to == JobRunning
	case JobRunning:
		return to == JobDone || to == JobFailed
	case JobDone, JobFailed:
		return to == JobQueued
	}
	return false
}

// IngestionJob tracks the lifecycle of one document's ingestion.
// Exactly one job exists per document; job existence implies document
// existence (enforced by a cascading foreign key).
type IngestionJob struct {
	// DocumentID identifies the owning document.
	DocumentID string

	// Status is the current state.
	Status JobStatus

	// Error holds failure detail; non-empty only when Status is failed.
	Error string

	// StartedAt is set on the queued → running transition.
	StartedAt time.Time

	// FinishedAt is set on the transition into done or failed.
	FinishedAt time.Time

	// UpdatedAt is bumped on every transition.
	UpdatedAt time.Time
}
