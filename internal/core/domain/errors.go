package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input. Requests
	// carrying it are rejected before any work is enqueued.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates the configured embedding model's
	// dimension does not match the vector store schema. This is a fatal
	// configuration error, detected before any writes.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrExtraction indicates the document extractor failed on
	// unsupported or corrupt input.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbedding indicates the embedding provider failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrInference indicates the chat-completion provider failed.
	ErrInference = errors.New("inference failed")

	// ErrRerankUnavailable indicates the rerank model could not be
	// reached. The rerank stage degrades to pass-through on it.
	ErrRerankUnavailable = errors.New("reranker unavailable")

	// ErrJobNotClaimable indicates an ingestion run could not claim the
	// job because it is not queued. Re-deliveries from an at-least-once
	// dispatcher hit this while a run is already active or finished.
	ErrJobNotClaimable = errors.New("ingestion job not claimable")

	// ErrJobConflict indicates a re-ingestion request was made while a
	// job is still queued or running.
	ErrJobConflict = errors.New("ingestion already in progress")
)
