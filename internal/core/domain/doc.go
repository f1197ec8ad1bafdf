// Package domain contains the core business entities and rules for the
// exam-tutor backend: documents, chunks, ingestion jobs, retrieval
// candidates and the tutor chat types. It has no dependencies on
// adapters or external services.
package domain
