package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *recorder) run(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, documentID)
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.runs))
	copy(out, r.runs)
	return out
}

func TestDispatcherProcessesQueuedDocuments(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec.run, 2, 8)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(context.Background(), "doc-1"))
	require.NoError(t, d.Enqueue(context.Background(), "doc-2"))
	require.NoError(t, d.Enqueue(context.Background(), "doc-3"))

	d.Stop()
	assert.ElementsMatch(t, []string{"doc-1", "doc-2", "doc-3"}, rec.seen())
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec.run, 1, 8)

	// Enqueue before any worker exists; Start then Stop must still
	// process everything.
	require.NoError(t, d.Enqueue(context.Background(), "doc-1"))
	require.NoError(t, d.Enqueue(context.Background(), "doc-2"))

	d.Start(context.Background())
	d.Stop()
	assert.Len(t, rec.seen(), 2)
}

func TestDispatcherRunErrorDoesNotStopWorkers(t *testing.T) {
	rec := &recorder{}
	failing := func(ctx context.Context, documentID string) error {
		_ = rec.run(ctx, documentID)
		return context.DeadlineExceeded
	}
	d := NewDispatcher(failing, 1, 8)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(context.Background(), "doc-1"))
	require.NoError(t, d.Enqueue(context.Background(), "doc-2"))

	d.Stop()
	assert.Len(t, rec.seen(), 2, "a failed run must not kill the worker")
}

func TestEnqueueRespectsContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(func(ctx context.Context, documentID string) error {
		<-block
		return nil
	}, 1, 1)
	d.Start(context.Background())
	defer func() {
		close(block)
		d.Stop()
	}()

	// doc-1 occupies the worker, doc-2 the single queue slot.
	require.NoError(t, d.Enqueue(context.Background(), "doc-1"))
	require.NoError(t, d.Enqueue(context.Background(), "doc-2"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Enqueue(ctx, "doc-3")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartIsIdempotent(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec.run, 1, 4)
	ctx := context.Background()
	d.Start(ctx)
	d.Start(ctx)

	require.NoError(t, d.Enqueue(ctx, "doc-1"))
	d.Stop()
	assert.Equal(t, []string{"doc-1"}, rec.seen())
}

func TestEnqueueAfterStopRejectsWork(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec.run, 1, 4)
	d.Start(context.Background())
	d.Stop()

	err := d.Enqueue(context.Background(), "doc-1")
	assert.ErrorContains(t, err, "dispatcher stopped")
	assert.Empty(t, rec.seen())
}

func TestStopIsIdempotent(t *testing.T) {
	d := NewDispatcher((&recorder{}).run, 1, 4)
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}
