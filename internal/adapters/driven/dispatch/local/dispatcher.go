// Package local implements the task dispatcher with an in-process
// queue and a fixed worker pool. Delivery is at-least-once: once
// accepted, a document ID survives until a worker picks it up, and the
// orchestrator's claim step absorbs duplicates.
package local

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/logger"
)

// Runner executes one ingestion pipeline run. Satisfied by the ingest
// orchestrator's Run method.
type Runner func(ctx context.Context, documentID string) error

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
)

// Dispatcher fans queued document IDs out to a pool of workers.
type Dispatcher struct {
	run     Runner
	workers int
	queue   chan string

	// stopMu orders Enqueue against Stop so the queue is never written
	// after it is closed.
	stopMu  sync.RWMutex
	stopped bool

	mu      sync.Mutex
	started bool
	group   *errgroup.Group
}

// Interface guard
var _ driven.TaskDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher over the given runner.
func NewDispatcher(run Runner, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		run:     run,
		workers: workers,
		queue:   make(chan string, queueSize),
	}
}

// Start launches the worker pool. It returns immediately; workers run
// until Stop is called or the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	group, ctx := errgroup.WithContext(ctx)
	d.group = group
	for i := 0; i < d.workers; i++ {
		worker := i
		group.Go(func() error {
			d.work(ctx, worker)
			return nil
		})
	}
}

// Stop closes the queue and waits for in-flight runs to finish.
// Documents still queued are drained and processed before return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	started := d.started
	group := d.group
	d.mu.Unlock()

	d.stopMu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.stopMu.Unlock()

	if started && group != nil {
		_ = group.Wait()
	}
}

// Enqueue accepts a document ID for background ingestion. It blocks
// only while the queue is full; context cancellation aborts the wait.
// A stopped dispatcher rejects new work.
func (d *Dispatcher) Enqueue(ctx context.Context, documentID string) error {
	d.stopMu.RLock()
	defer d.stopMu.RUnlock()
	if d.stopped {
		return fmt.Errorf("enqueue %s: dispatcher stopped", documentID)
	}

	select {
	case d.queue <- documentID:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", documentID, ctx.Err())
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		select {
		case documentID, ok := <-d.queue:
			if !ok {
				return
			}
			logger.Debug("worker %d: ingesting document %s", worker, documentID)
			if err := d.run(ctx, documentID); err != nil {
				// The orchestrator already recorded the failure on the
				// job; nothing to retry here.
				logger.Warn("worker %d: ingestion of %s failed: %v", worker, documentID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
