// Package services implements the driving port interfaces: the ingest
// orchestrator, the indexer, the retriever and the tutor. Services
// contain the core business logic and orchestrate calls to driven
// ports (adapters).
package services
