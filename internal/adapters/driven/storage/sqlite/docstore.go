package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (d *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = d.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source, title, exam, subject, topic, doc_type, year, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			title = excluded.title,
			exam = excluded.exam,
			subject = excluded.subject,
			topic = excluded.topic,
			doc_type = excluded.doc_type,
			year = excluded.year,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Source, doc.Title, doc.Exam, doc.Subject, doc.Topic, doc.DocType,
		doc.Year, string(metaJSON), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, source, title, exam, subject, topic, doc_type, year, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// DeleteDocument removes a document; the job row cascades.
func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := d.store.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDocuments returns all registered documents ordered by creation.
func (d *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, source, title, exam, subject, topic, doc_type, year, metadata, created_at, updated_at
		FROM documents ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metaJSON string
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Exam, &doc.Subject,
		&doc.Topic, &doc.DocType, &doc.Year, &metaJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

// ==================== Job Store ====================

// jobStore implements driven.JobStore. All transitions are conditional
// updates; an update that matches no row is a state machine violation.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// ResetQueued creates the job row or resets a terminal job back to
// queued. Queued or running jobs are left untouched and reported as a
// conflict.
func (j *jobStore) ResetQueued(ctx context.Context, documentID string) error {
	now := time.Now().UTC()
	result, err := j.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (document_id, status, error, started_at, finished_at, updated_at)
		VALUES (?, 'queued', '', NULL, NULL, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			status = 'queued',
			error = '',
			started_at = NULL,
			finished_at = NULL,
			updated_at = excluded.updated_at
		WHERE ingestion_jobs.status IN ('done', 'failed')
	`, documentID, now)
	if err != nil {
		return fmt.Errorf("queueing job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking queue result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: job for document %s is already active", domain.ErrJobConflict, documentID)
	}
	return nil
}

// Claim atomically moves queued → running. Exactly one concurrent
// caller wins; the rest see ErrJobNotClaimable.
func (j *jobStore) Claim(ctx context.Context, documentID string) error {
	now := time.Now().UTC()
	result, err := j.store.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET status = 'running', started_at = ?, updated_at = ?
		WHERE document_id = ? AND status = 'queued'
	`, now, now, documentID)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking claim result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrJobNotClaimable, documentID)
	}
	return nil
}

// MarkDone moves running → done.
func (j *jobStore) MarkDone(ctx context.Context, documentID string) error {
	return j.finish(ctx, documentID, "done", "")
}

// MarkFailed moves running → failed with error detail.
func (j *jobStore) MarkFailed(ctx context.Context, documentID, errMsg string) error {
	return j.finish(ctx, documentID, "failed", errMsg)
}

func (j *jobStore) finish(ctx context.Context, documentID, status, errMsg string) error {
	now := time.Now().UTC()
	result, err := j.store.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET status = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE document_id = ? AND status = 'running'
	`, status, errMsg, now, now, documentID)
	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking finish result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: job for document %s is not running", domain.ErrJobConflict, documentID)
	}
	return nil
}

// Get retrieves the job for a document.
func (j *jobStore) Get(ctx context.Context, documentID string) (*domain.IngestionJob, error) {
	row := j.store.db.QueryRowContext(ctx, `
		SELECT document_id, status, error, started_at, finished_at, updated_at
		FROM ingestion_jobs WHERE document_id = ?
	`, documentID)

	var job domain.IngestionJob
	var status string
	var startedAt, finishedAt, updatedAt sql.NullTime
	err := row.Scan(&job.DocumentID, &status, &job.Error, &startedAt, &finishedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}
	return &job, nil
}
