// Package extract routes extraction between a local passthrough for
// text files and a conversion service for everything else.
package extract

import (
	"context"
	"fmt"

	"github.com/veda-labs/examtutor/internal/adapters/driven/extract/markdown"
	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// Ensure Router implements the interface.
var _ driven.Extractor = (*Router)(nil)

// Router picks the extractor by source type. converter may be nil when
// no conversion service is deployed; non-text sources then fail with a
// clear extraction error.
type Router struct {
	text      driven.Extractor
	converter driven.Extractor
}

// NewRouter creates the extraction router.
func NewRouter(converter driven.Extractor) *Router {
	return &Router{
		text:      markdown.New(),
		converter: converter,
	}
}

// Extract dispatches to the passthrough for Markdown/plaintext and to
// the conversion service otherwise.
func (r *Router) Extract(ctx context.Context, source string) (string, error) {
	if markdown.Supports(source) {
		return r.text.Extract(ctx, source)
	}
	if r.converter == nil {
		return "", fmt.Errorf("%w: no conversion service configured for %s", domain.ErrExtraction, source)
	}
	return r.converter.Extract(ctx, source)
}
