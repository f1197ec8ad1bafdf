package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents a registered study document. It carries the exam
// taxonomy used to filter retrieval. A document exclusively owns its
// chunks and its ingestion job; deleting it cascades to both.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Source is the original location (file path or URL).
	Source string

	// Title is the human-readable title, used in citations.
	Title string

	// Exam is the target exam (e.g. "GATE_DA", "UPSC_PRELIMS"). Required.
	Exam string

	// Subject, Topic, DocType and Year are optional taxonomy fields,
	// denormalised onto every chunk for filter performance.
	Subject string
	Topic   string
	DocType string
	Year    int

	// Metadata contains arbitrary key-value pairs supplied at ingestion.
	Metadata map[string]any

	// CreatedAt is when the document was registered.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Validate checks the fields required to register a document.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Exam) == "" {
		return fmt.Errorf("%w: exam is required", ErrInvalidInput)
	}
	return nil
}

// Chunk quality tags assigned by the filter stage. Tagged chunks are
// still indexed; exclusion is a query-time policy (see RetrievalFilters).
const (
	TagFrontMatter = "front_matter"
	TagBoilerplate = "boilerplate"
	TagImageOnly   = "image_only"
	TagDuplicate   = "duplicate"
	TagLowSignal   = "low_signal"
	TagOversize    = "oversize"
)

// ChunkDraft is a chunk before embedding: produced by the chunker,
// tagged and scored by the filter, then handed to the indexer.
type ChunkDraft struct {
	// Index is the 0-based position within the document.
	Index int

	// Content is the chunk text.
	Content string

	// TokenCount is the deterministic token count of Content.
	TokenCount int

	// SectionPath is the full heading path of the first block
	// (e.g. "Thermodynamics > First Law").
	SectionPath string

	// ParentSection is the heading path truncated at the parent
	// section level; chunks never span two parent sections.
	ParentSection string

	// BlockTypes lists the markdown block kinds that went into the
	// chunk, in order of first appearance (text, list, table, code, image).
	BlockTypes []string

	// Oversize marks a singleton unit that exceeds the token budget
	// and could not be split further.
	Oversize bool

	// Tags and QualityScore are set by the filter stage.
	Tags         []string
	QualityScore float64
}

// HasTag reports whether the draft carries the given tag.
func (d *ChunkDraft) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ContentHash returns the deterministic hash of the draft's normalised
// content, used for duplicate detection and round-trip stability checks.
func (d *ChunkDraft) ContentHash() string {
	return HashContent(d.Content)
}

// Chunk is the persisted unit of embedding and retrieval. The vector
// store is the sole authority for chunk persistence; chunks are never
// mutated after creation except by full re-ingestion of the document.
type Chunk struct {
	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the 0-based position within the document.
	// (DocumentID, Index) is unique.
	Index int

	// Content is the chunk text.
	Content string

	// TokenCount is the token count of Content.
	TokenCount int

	// Embedding is the fixed-dimension vector representation.
	Embedding []float32

	// Exam taxonomy denormalised from the document.
	Exam    string
	Subject string
	Topic   string
	DocType string
	Year    int

	// SourceTitle is the owning document's title, carried for citations.
	SourceTitle string

	// Tags are the quality labels assigned by the filter stage.
	Tags []string

	// QualityScore is the filter's reproducible quality estimate in [0, 1].
	QualityScore float64

	// ContentHash is the sha-256 of the normalised content.
	ContentHash string

	// SectionPath and ParentSection record where in the document the
	// chunk came from.
	SectionPath   string
	ParentSection string
}

// HasTag reports whether the chunk carries the given tag.
func (c *Chunk) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ID returns the deterministic chunk identifier derived from
// (DocumentID, Index). Re-ingestion of the same document produces the
// same IDs, which is what makes chunk-set replacement an upsert.
func (c *Chunk) ID() string {
	return ChunkID(c.DocumentID, c.Index)
}

// ChunkID derives the stable chunk identifier for a document position.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", documentID, index))).String()
}

// HashContent returns the sha-256 hex digest of the trimmed content.
// It must stay stable across releases: content hashes persisted at
// ingestion are compared against freshly computed ones on re-ingestion.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// IngestRequest is the payload accepted by the ingest surface.
type IngestRequest struct {
	Source   string
	Title    string
	Exam     string
	Subject  string
	Topic    string
	DocType  string
	Year     int
	Metadata map[string]any
}

// NewDocument builds a Document from an ingest request with a fresh ID.
func NewDocument(req IngestRequest) *Document {
	meta := req.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	now := time.Now().UTC()
	return &Document{
		ID:        uuid.New().String(),
		Source:    req.Source,
		Title:     req.Title,
		Exam:      req.Exam,
		Subject:   req.Subject,
		Topic:     req.Topic,
		DocType:   req.DocType,
		Year:      req.Year,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
