package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/logger"
	"github.com/veda-labs/examtutor/internal/pipeline/chunker"
	"github.com/veda-labs/examtutor/internal/pipeline/filter"
	"github.com/veda-labs/examtutor/internal/pipeline/normalize"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestService = (*IngestOrchestrator)(nil)

// FilterSettings are the classification thresholds handed to each
// ingestion run.
type FilterSettings struct {
	MinTokens          int
	FrontMatterWindow  int
	MaxChunksPerDoc    int
	MaxChunksPerParent int

	// RepeatThreshold controls header/footer stripping during
	// normalisation; zero takes the normalize package default.
	RepeatThreshold int
}

// IngestOrchestrator coordinates the document ingestion lifecycle:
// register, background run, status, re-ingest and delete. A failed run
// never corrupts the index; the previous chunk set survives.
type IngestOrchestrator struct {
	docStore   driven.DocumentStore
	jobStore   driven.JobStore
	vectors    driven.VectorStore
	extractor  driven.Extractor
	dispatcher driven.TaskDispatcher
	chunker    *chunker.Chunker
	indexer    *Indexer
	filters    FilterSettings

	// boilerplate hashes roll across documents so repeated headers and
	// footers are caught on later ingests. Guarded by mu because the
	// filter mutates the set while classifying.
	mu          sync.Mutex
	boilerplate map[string]struct{}
}

// NewIngestOrchestrator creates an ingest orchestrator.
func NewIngestOrchestrator(
	docStore driven.DocumentStore,
	jobStore driven.JobStore,
	vectors driven.VectorStore,
	extractor driven.Extractor,
	dispatcher driven.TaskDispatcher,
	ck *chunker.Chunker,
	indexer *Indexer,
	filters FilterSettings,
) *IngestOrchestrator {
	return &IngestOrchestrator{
		docStore:    docStore,
		jobStore:    jobStore,
		vectors:     vectors,
		extractor:   extractor,
		dispatcher:  dispatcher,
		chunker:     ck,
		indexer:     indexer,
		filters:     filters,
		boilerplate: make(map[string]struct{}),
	}
}

// Register validates the request, persists the document with a queued
// job and enqueues background work. It returns as soon as the job is
// queued; the pipeline runs out of band.
func (o *IngestOrchestrator) Register(ctx context.Context, req domain.IngestRequest) (*driving.IngestReceipt, error) {
	doc := domain.NewDocument(req)
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := o.jobStore.ResetQueued(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("queue job: %w", err)
	}
	if err := o.dispatcher.Enqueue(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	logger.Info("Registered document %s (%s)", doc.ID, doc.Title)
	return &driving.IngestReceipt{DocumentID: doc.ID, Status: domain.JobQueued}, nil
}

// Status returns the current job state for a document.
func (o *IngestOrchestrator) Status(ctx context.Context, documentID string) (*domain.IngestionJob, error) {
	return o.jobStore.Get(ctx, documentID)
}

// Reingest resets a terminal job back to queued and re-runs the full
// pipeline. Running or already-queued jobs are rejected with
// domain.ErrJobConflict.
func (o *IngestOrchestrator) Reingest(ctx context.Context, documentID string) error {
	if _, err := o.docStore.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if err := o.jobStore.ResetQueued(ctx, documentID); err != nil {
		return err
	}
	if err := o.dispatcher.Enqueue(ctx, documentID); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Run executes the full pipeline for one document. Callers are the
// dispatcher's workers; delivery is at-least-once, so a failed claim
// means another worker owns the run and is not an error.
func (o *IngestOrchestrator) Run(ctx context.Context, documentID string) error {
	// 1. Claim the job: queued → running, exactly one winner.
	if err := o.jobStore.Claim(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrJobNotClaimable) {
			logger.Debug("Dropping re-delivery for document %s", documentID)
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}

	doc, err := o.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return o.fail(ctx, documentID, fmt.Errorf("get document: %w", err))
	}

	// 2. Extract and normalise the source text.
	text, err := o.extractor.Extract(ctx, doc.Source)
	if err != nil {
		return o.fail(ctx, documentID, err)
	}
	text = normalize.Clean(text, o.filters.RepeatThreshold)

	// 3. Chunk and classify.
	drafts := o.chunker.Chunk(text)
	drafts = o.classify(drafts)
	logger.Debug("Document %s: %d chunks after filtering", documentID, len(drafts))

	// 4. Embed and index.
	chunks, err := o.indexer.Index(ctx, doc, drafts)
	if err != nil {
		return o.fail(ctx, documentID, err)
	}

	// 5. Mark done.
	if err := o.jobStore.MarkDone(ctx, documentID); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	logger.Info("Ingested document %s: %d chunks", documentID, len(chunks))
	return nil
}

// DeleteDocument removes the document, its chunk set and its job row.
// Vector cleanup runs first so a partial failure cannot leave orphaned
// chunks behind a deleted document.
func (o *IngestOrchestrator) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := o.docStore.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if err := o.vectors.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := o.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("Deleted document %s", documentID)
	return nil
}

// classify runs the filter stage under the shared boilerplate set.
func (o *IngestOrchestrator) classify(drafts []domain.ChunkDraft) []domain.ChunkDraft {
	o.mu.Lock()
	defer o.mu.Unlock()

	f := filter.New(
		filter.WithMinTokens(o.filters.MinTokens),
		filter.WithFrontMatterWindow(o.filters.FrontMatterWindow),
		filter.WithMaxChunksPerDoc(o.filters.MaxChunksPerDoc),
		filter.WithMaxChunksPerParent(o.filters.MaxChunksPerParent),
		filter.WithBoilerplateHashes(o.boilerplate),
	)
	return f.Apply(drafts)
}

// fail records the failure on the job and propagates the cause. One
// document's failure never affects other jobs.
func (o *IngestOrchestrator) fail(ctx context.Context, documentID string, cause error) error {
	logger.Warn("Ingestion failed for document %s: %v", documentID, cause)
	if err := o.jobStore.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		return errors.Join(cause, fmt.Errorf("mark failed: %w", err))
	}
	return cause
}
