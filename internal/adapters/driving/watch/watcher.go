// Package watch ingests documents dropped into a directory. New or
// rewritten supported files are registered for ingestion with a short
// debounce so editors that write in several events trigger one run;
// removed files are deleted from the index.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/logger"
)

// Config holds watcher settings. Exam and Subject are applied to every
// document registered from the directory.
type Config struct {
	Dir     string
	Exam    string
	Subject string

	// Debounce delays registration after the last write event.
	// Defaults to 2s.
	Debounce time.Duration
}

// Watcher registers dropped files with the ingest service.
type Watcher struct {
	config Config
	ingest driving.IngestService

	mu      sync.Mutex
	pending map[string]*time.Timer
	docIDs  map[string]string // source path -> document id
}

var supportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".pdf":      true,
	".docx":     true,
}

// NewWatcher creates a directory watcher over the ingest service.
func NewWatcher(config Config, ingest driving.IngestService) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch: directory is required")
	}
	if config.Exam == "" {
		return nil, fmt.Errorf("watch: exam is required")
	}
	if config.Debounce == 0 {
		config.Debounce = 2 * time.Second
	}
	return &Watcher{
		config:  config,
		ingest:  ingest,
		pending: make(map[string]*time.Timer),
		docIDs:  make(map[string]string),
	}, nil
}

// Run watches the directory until the context is cancelled. Files
// already present at startup are registered first.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.config.Dir, err)
	}
	logger.Info("watch: ingesting drops from %s", w.config.Dir)

	if err := w.registerExisting(ctx); err != nil {
		logger.Warn("watch: initial scan failed: %v", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		case <-ctx.Done():
			w.cancelPending()
			return nil
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !supported(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.scheduleRegister(ctx, event.Name)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.remove(ctx, event.Name)
	}
}

// scheduleRegister (re)arms the debounce timer for the path. Editors
// that save via temp file and rename fire several events per save; only
// the last one within the window triggers a registration.
func (w *Watcher) scheduleRegister(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.register(ctx, path)
	})
}

func (w *Watcher) register(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Gone before the debounce fired.
		return
	}

	receipt, err := w.ingest.Register(ctx, domain.IngestRequest{
		Source:  path,
		Title:   titleFromPath(path),
		Exam:    w.config.Exam,
		Subject: w.config.Subject,
		Metadata: map[string]any{
			"origin": "watch",
		},
	})
	if err != nil {
		logger.Warn("watch: register %s failed: %v", path, err)
		return
	}

	w.mu.Lock()
	w.docIDs[path] = receipt.DocumentID
	w.mu.Unlock()
	logger.Info("watch: queued %s as document %s", path, receipt.DocumentID)
}

func (w *Watcher) remove(ctx context.Context, path string) {
	w.mu.Lock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	docID, ok := w.docIDs[path]
	if ok {
		delete(w.docIDs, path)
	}
	w.mu.Unlock()

	if !ok {
		return
	}
	if err := w.ingest.DeleteDocument(ctx, docID); err != nil {
		logger.Warn("watch: delete document %s for %s failed: %v", docID, path, err)
		return
	}
	logger.Info("watch: removed document %s for %s", docID, path)
}

func (w *Watcher) registerExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.config.Dir, entry.Name())
		if supported(path) {
			w.register(ctx, path)
		}
	}
	return nil
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.ReplaceAll(title, "-", " ")
	if title == "" {
		return uuid.NewString()
	}
	return title
}
