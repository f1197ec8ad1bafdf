// Package config loads application settings from a TOML file with
// environment overrides. A missing config file is fine; defaults cover
// a local single-node setup with an embedded vector store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/pipeline/normalize"
)

// Config is the full application configuration.
type Config struct {
	// DataDir holds the SQLite database and other local state.
	// Defaults to ~/.examtutor/data.
	DataDir string `toml:"data_dir"`

	// Verbose enables debug logging.
	Verbose bool `toml:"verbose"`

	HTTP      HTTPConfig      `toml:"http"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Rerank    RerankConfig    `toml:"rerank"`
	Qdrant    QdrantConfig    `toml:"qdrant"`
	Extract   ExtractConfig   `toml:"extract"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Filter    FilterConfig    `toml:"filter"`
	Workers   WorkersConfig   `toml:"workers"`
	Watch     WatchConfig     `toml:"watch"`
	Chat      ChatConfig      `toml:"chat"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// EmbeddingConfig holds the embedding provider settings. Any
// OpenAI-compatible endpoint works; Dimensions is required for models
// outside the known table.
type EmbeddingConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Dimensions        int     `toml:"dimensions"`
	BatchSize         int     `toml:"batch_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LLMConfig holds the chat-completion provider settings.
type LLMConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// RerankConfig holds the optional rerank stage settings. An empty
// BaseURL disables reranking.
type RerankConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	TopM    int    `toml:"top_m"`
}

// QdrantConfig selects Qdrant as the vector store. An empty BaseURL
// falls back to the in-memory store.
type QdrantConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Collection string `toml:"collection"`
}

// ExtractConfig holds the document converter settings. An empty
// DoclingURL limits ingestion to markdown and plain text.
type ExtractConfig struct {
	DoclingURL string `toml:"docling_url"`
}

// ChunkingConfig holds the chunker parameters.
type ChunkingConfig struct {
	MaxTokens          int `toml:"max_tokens"`
	MinTokens          int `toml:"min_tokens"`
	OverlapTokens      int `toml:"overlap_tokens"`
	ParentSectionLevel int `toml:"parent_section_level"`
}

// FilterConfig holds the quality filter parameters.
type FilterConfig struct {
	MinTokens          int `toml:"min_tokens"`
	FrontMatterWindow  int `toml:"front_matter_window"`
	MaxChunksPerDoc    int `toml:"max_chunks_per_doc"`
	MaxChunksPerParent int `toml:"max_chunks_per_parent"`
	RepeatThreshold    int `toml:"repeat_threshold"`
}

// WorkersConfig sizes the ingestion worker pool.
type WorkersConfig struct {
	Count     int `toml:"count"`
	QueueSize int `toml:"queue_size"`
}

// WatchConfig enables drop-directory ingestion. An empty Dir disables
// the watcher.
type WatchConfig struct {
	Dir     string `toml:"dir"`
	Exam    string `toml:"exam"`
	Subject string `toml:"subject"`
}

// ChatConfig holds tutoring defaults.
type ChatConfig struct {
	DefaultExam     string  `toml:"default_exam"`
	DefaultLanguage string  `toml:"default_language"`
	TopK            int     `toml:"top_k"`
	TopN            int     `toml:"top_n"`
	MemoryMessages  int     `toml:"memory_messages"`
	MinSourceScore  float64 `toml:"min_source_score"`

	// ExcludeTags are filter tags that disqualify chunks from chat
	// grounding at query time.
	ExcludeTags []string `toml:"exclude_tags"`

	// MinQualityScore is the quality floor applied on chat retrieval.
	// Zero means no floor.
	MinQualityScore float64 `toml:"min_quality_score"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Embedding: EmbeddingConfig{
			Model:             "text-embedding-3-small",
			BatchSize:         32,
			RequestsPerSecond: 4,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.3,
		},
		Rerank:  RerankConfig{TopM: 10},
		Qdrant:  QdrantConfig{Collection: "examtutor_chunks"},
		Chunking: ChunkingConfig{
			MaxTokens:          320,
			MinTokens:          24,
			OverlapTokens:      40,
			ParentSectionLevel: 2,
		},
		Filter: FilterConfig{
			MinTokens:          24,
			FrontMatterWindow:  3,
			MaxChunksPerDoc:    400,
			MaxChunksPerParent: 60,
			RepeatThreshold:    normalize.DefaultRepeatThreshold,
		},
		Workers: WorkersConfig{Count: 2, QueueSize: 64},
		Chat: ChatConfig{
			DefaultExam:     "",
			DefaultLanguage: "en",
			TopK:            20,
			TopN:            6,
			MemoryMessages:  6,
			MinSourceScore:  0.15,
			ExcludeTags: []string{
				domain.TagFrontMatter,
				domain.TagBoilerplate,
				domain.TagImageOnly,
				domain.TagDuplicate,
			},
		},
	}
}

// Load reads the config file at path (or the default location when
// empty), then applies environment overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	// .env is a convenience for local runs; absence is normal.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".examtutor", "config.toml")
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults apply.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded values.
// Provider keys follow the conventional names; everything else is
// prefixed EXAMTUTOR_.
func (c *Config) applyEnv() {
	setString(&c.DataDir, "EXAMTUTOR_DATA_DIR")
	setBool(&c.Verbose, "EXAMTUTOR_VERBOSE")
	setString(&c.HTTP.Addr, "EXAMTUTOR_HTTP_ADDR")

	setString(&c.Embedding.BaseURL, "EXAMTUTOR_EMBEDDING_BASE_URL")
	setString(&c.Embedding.APIKey, "EXAMTUTOR_EMBEDDING_API_KEY")
	setString(&c.Embedding.Model, "EXAMTUTOR_EMBEDDING_MODEL")
	setInt(&c.Embedding.Dimensions, "EXAMTUTOR_EMBEDDING_DIMENSIONS")

	setString(&c.LLM.BaseURL, "EXAMTUTOR_LLM_BASE_URL")
	setString(&c.LLM.APIKey, "EXAMTUTOR_LLM_API_KEY")
	setString(&c.LLM.Model, "EXAMTUTOR_LLM_MODEL")

	setString(&c.Rerank.BaseURL, "EXAMTUTOR_RERANK_BASE_URL")
	setString(&c.Qdrant.BaseURL, "EXAMTUTOR_QDRANT_BASE_URL")
	setString(&c.Qdrant.APIKey, "EXAMTUTOR_QDRANT_API_KEY")
	setString(&c.Extract.DoclingURL, "EXAMTUTOR_DOCLING_URL")
	setString(&c.Watch.Dir, "EXAMTUTOR_WATCH_DIR")

	// OPENAI_API_KEY fills both providers when their own key is unset.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
	}
}

// Validate rejects settings that would fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive")
	}
	if c.Chunking.MinTokens < 0 || c.Chunking.MinTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.min_tokens must be in [0, max_tokens)")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, max_tokens)")
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be positive")
	}
	if c.Embedding.RequestsPerSecond <= 0 {
		return fmt.Errorf("embedding.requests_per_second must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
