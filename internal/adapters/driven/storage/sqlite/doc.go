// Package sqlite provides a unified SQLite-based implementation of the
// metadata store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. It implements
// multiple store interfaces through a single database connection:
//
//   - DocumentStore: document metadata persistence
//   - JobStore: ingestion job state machine
//   - MemoryStore: conversations and chat messages
//   - FeedbackStore: user ratings of chat exchanges
//
// Chunks are not stored here; the vector store owns them.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory as .up.sql/.down.sql pairs.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode; job transitions are conditional
// updates so concurrent workers respect the state machine.
package sqlite
