package driving

import (
	"context"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

// IngestReceipt is returned immediately from an ingestion request; the
// actual pipeline runs out of band.
type IngestReceipt struct {
	DocumentID string
	Status     domain.JobStatus
}

// IngestService coordinates the document ingestion lifecycle.
type IngestService interface {
	// Register validates the request, persists the document with a
	// queued job, enqueues background work and returns a job handle.
	Register(ctx context.Context, req domain.IngestRequest) (*IngestReceipt, error)

	// Status returns the current job state for a document.
	Status(ctx context.Context, documentID string) (*domain.IngestionJob, error)

	// Reingest resets a done or failed job to queued and re-runs the
	// full pipeline. It is not incremental.
	Reingest(ctx context.Context, documentID string) error

	// Run executes the full pipeline for one document: claim, extract,
	// chunk, filter, index, then done/failed. Called by workers.
	Run(ctx context.Context, documentID string) error

	// DeleteDocument removes a document, its chunks and its job.
	DeleteDocument(ctx context.Context, documentID string) error
}
