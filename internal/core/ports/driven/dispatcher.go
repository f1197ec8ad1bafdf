package driven

import "context"

// TaskDispatcher hands ingestion work to background workers. Delivery
// is at-least-once: a document ID may be delivered more than once, and
// the orchestrator's claim step makes re-deliveries harmless. The
// dispatcher never retries on the orchestrator's behalf.
type TaskDispatcher interface {
	// Enqueue schedules an ingestion run for the document. It returns
	// as soon as the work is accepted, not when it completes.
	Enqueue(ctx context.Context, documentID string) error
}
