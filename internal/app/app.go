// Package app assembles the application from configuration: storage,
// providers, pipeline services and the driving surfaces. It is the
// only package that knows every adapter.
package app

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/veda-labs/examtutor/internal/adapters/driven/dispatch/local"
	"github.com/veda-labs/examtutor/internal/adapters/driven/embedding/openai"
	"github.com/veda-labs/examtutor/internal/adapters/driven/extract"
	"github.com/veda-labs/examtutor/internal/adapters/driven/extract/docling"
	openaillm "github.com/veda-labs/examtutor/internal/adapters/driven/llm/openai"
	"github.com/veda-labs/examtutor/internal/adapters/driven/rerank/tei"
	"github.com/veda-labs/examtutor/internal/adapters/driven/storage/sqlite"
	"github.com/veda-labs/examtutor/internal/adapters/driven/vectorstore/memory"
	"github.com/veda-labs/examtutor/internal/adapters/driven/vectorstore/qdrant"
	"github.com/veda-labs/examtutor/internal/adapters/driving/httpapi"
	"github.com/veda-labs/examtutor/internal/adapters/driving/watch"
	"github.com/veda-labs/examtutor/internal/config"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/core/services"
	"github.com/veda-labs/examtutor/internal/logger"
	"github.com/veda-labs/examtutor/internal/pipeline/chunker"
)

// App holds the assembled application.
type App struct {
	Config *config.Config

	Ingest   driving.IngestService
	Retrieve driving.RetrieveService
	Chat     driving.ChatService
	Feedback driven.FeedbackStore

	store      *sqlite.Store
	dispatcher *local.Dispatcher
	httpServer *httpapi.Server
	watcher    *watch.Watcher
}

// New builds the application. Nothing is started; call Run for the
// serving surfaces or use the services directly for one-shot commands.
func New(cfg *config.Config) (*App, error) {
	logger.SetVerbose(cfg.Verbose)

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	embedder, err := openai.NewEmbeddingService(openai.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedding service: %w", err)
	}

	var vectors driven.VectorStore
	if cfg.Qdrant.BaseURL != "" {
		vectors = qdrant.NewStore(qdrant.Config{
			BaseURL:    cfg.Qdrant.BaseURL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
		})
	} else {
		logger.Info("app: no qdrant configured, using in-memory vector store")
		vectors = memory.NewStore()
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Embedding.RequestsPerSecond), 1)
	indexer := services.NewIndexer(embedder, vectors, limiter, cfg.Embedding.BatchSize)

	ck := chunker.New(
		chunker.WithMaxTokens(cfg.Chunking.MaxTokens),
		chunker.WithMinTokens(cfg.Chunking.MinTokens),
		chunker.WithOverlapTokens(cfg.Chunking.OverlapTokens),
		chunker.WithParentSectionLevel(cfg.Chunking.ParentSectionLevel),
	)

	var converter driven.Extractor
	if cfg.Extract.DoclingURL != "" {
		converter, err = docling.New(docling.Config{BaseURL: cfg.Extract.DoclingURL})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("docling extractor: %w", err)
		}
	}
	extractor := extract.NewRouter(converter)

	app := &App{Config: cfg, store: store, Feedback: store.FeedbackStore()}

	// Dispatcher and orchestrator reference each other; the dispatcher
	// gets the orchestrator's Run by closure.
	var ingest *services.IngestOrchestrator
	app.dispatcher = local.NewDispatcher(func(ctx context.Context, documentID string) error {
		return ingest.Run(ctx, documentID)
	}, cfg.Workers.Count, cfg.Workers.QueueSize)

	ingest = services.NewIngestOrchestrator(
		store.DocumentStore(),
		store.JobStore(),
		vectors,
		extractor,
		app.dispatcher,
		ck,
		indexer,
		services.FilterSettings{
			MinTokens:          cfg.Filter.MinTokens,
			FrontMatterWindow:  cfg.Filter.FrontMatterWindow,
			MaxChunksPerDoc:    cfg.Filter.MaxChunksPerDoc,
			MaxChunksPerParent: cfg.Filter.MaxChunksPerParent,
			RepeatThreshold:    cfg.Filter.RepeatThreshold,
		},
	)
	app.Ingest = ingest

	var reranker driven.RerankScorer
	if cfg.Rerank.BaseURL != "" {
		reranker, err = tei.NewReranker(tei.Config{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  cfg.Rerank.APIKey,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("reranker: %w", err)
		}
	}
	app.Retrieve = services.NewRetriever(embedder, vectors, reranker, cfg.Rerank.TopM)

	llm, err := openaillm.NewLLMService(openaillm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("llm service: %w", err)
	}
	app.Chat = services.NewTutor(app.Retrieve, llm, store.MemoryStore(), services.TutorSettings{
		DefaultExam:     cfg.Chat.DefaultExam,
		DefaultLanguage: cfg.Chat.DefaultLanguage,
		TopK:            cfg.Chat.TopK,
		TopN:            cfg.Chat.TopN,
		MinSourceScore:  cfg.Chat.MinSourceScore,
		ExcludeTags:     cfg.Chat.ExcludeTags,
		MinQualityScore: cfg.Chat.MinQualityScore,
		MemoryMessages:  cfg.Chat.MemoryMessages,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
	})

	app.httpServer = httpapi.NewServer(httpapi.Config{Addr: cfg.HTTP.Addr},
		app.Ingest, app.Retrieve, app.Chat, app.Feedback)

	if cfg.Watch.Dir != "" {
		app.watcher, err = watch.NewWatcher(watch.Config{
			Dir:     cfg.Watch.Dir,
			Exam:    cfg.Watch.Exam,
			Subject: cfg.Watch.Subject,
		}, app.Ingest)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("watcher: %w", err)
		}
	}

	return app, nil
}

// Run starts the worker pool, the optional directory watcher and the
// HTTP server, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	defer a.dispatcher.Stop()

	if a.watcher != nil {
		go func() {
			if err := a.watcher.Run(ctx); err != nil {
				logger.Error("watcher stopped: %v", err)
			}
		}()
	}

	return a.httpServer.Start(ctx)
}

// Close releases held resources.
func (a *App) Close() error {
	return a.store.Close()
}
