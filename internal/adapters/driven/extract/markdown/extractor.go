// Package markdown provides a passthrough extractor for sources that
// are already text: Markdown and plaintext files.
package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor reads Markdown and plaintext files from the local
// filesystem without conversion.
type Extractor struct{}

// New creates a passthrough extractor.
func New() *Extractor { return &Extractor{} }

// Supports reports whether the source extension is handled here.
func Supports(source string) bool {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// Extract reads the file contents as-is.
func (e *Extractor) Extract(_ context.Context, source string) (string, error) {
	if !Supports(source) {
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrExtraction, filepath.Ext(source))
	}
	content, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrExtraction, source, err)
	}
	return string(content), nil
}
