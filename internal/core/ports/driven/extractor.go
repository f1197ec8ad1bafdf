package driven

import "context"

// Extractor converts a source document into normalised Markdown-like
// text whose heading markers double as structure hints for the chunker.
//
// Implementations may include:
//   - A passthrough reader for Markdown/plaintext files
//   - An HTTP client for a document-conversion service (PDF, DOCX, …)
type Extractor interface {
	// Extract reads the source and returns normalised text. Failures
	// on unsupported or corrupt input wrap domain.ErrExtraction.
	Extract(ctx context.Context, source string) (string, error)
}
