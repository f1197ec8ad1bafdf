// Package chunker splits normalised Markdown into token-bounded chunk
// drafts. Chunking is hierarchical and structure-aware: headings at or
// below the parent section level are hard boundaries, so no chunk ever
// spans two parent sections.
package chunker

import (
	"regexp"
	"strings"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/pipeline/normalize"
)

// Default chunking parameters.
const (
	DefaultMaxTokens          = 512
	DefaultMinTokens          = 24
	DefaultParentSectionLevel = 2
)

// TokenCounter counts tokens in a piece of text. It must be
// deterministic and identical between ingestion and any re-chunking,
// or content hashes drift.
type TokenCounter func(text string) int

// HeuristicTokens approximates tokens as one per four characters.
// Used when no model tokenizer is wired in.
func HeuristicTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Chunker accumulates markdown blocks into bounded chunks.
type Chunker struct {
	maxTokens     int
	minTokens     int
	overlapTokens int
	parentLevel   int
	count         TokenCounter
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxTokens sets the per-chunk token budget.
func WithMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithMinTokens sets the threshold below which a trailing chunk is
// merged into its predecessor within the same parent section.
func WithMinTokens(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minTokens = n
		}
	}
}

// WithOverlapTokens sets the token tail carried from a closed chunk
// into the next chunk of the same parent section.
func WithOverlapTokens(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapTokens = n
		}
	}
}

// WithParentSectionLevel sets the heading level at or below which a
// heading is a hard chunk boundary. Clamped to 1..6.
func WithParentSectionLevel(n int) Option {
	return func(c *Chunker) {
		if n < 1 {
			n = 1
		}
		if n > 6 {
			n = 6
		}
		c.parentLevel = n
	}
}

// WithTokenCounter swaps the token counting function.
func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Chunker) {
		if tc != nil {
			c.count = tc
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxTokens:   DefaultMaxTokens,
		minTokens:   DefaultMinTokens,
		parentLevel: DefaultParentSectionLevel,
		count:       HeuristicTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits the text into ordered chunk drafts. Chunk indexes are
// contiguous and 0-based; heading-only sections produce no chunk.
func (c *Chunker) Chunk(text string) []domain.ChunkDraft {
	blocks := c.expandOversized(parseBlocks(text, c.count, c.parentLevel))

	var drafts []domain.ChunkDraft
	var cur []block
	curTokens := 0
	activeParent := ""

	flush := func() {
		if len(cur) == 0 {
			return
		}
		draft, ok := c.assemble(cur, activeParent)
		if ok {
			drafts = append(drafts, draft)
		}
		cur = nil
		curTokens = 0
	}

	for _, b := range blocks {
		// A parent-level heading starts a new group; no chunk may span it.
		if b.kind == blockHeading && b.headingLevel > 0 && b.headingLevel <= c.parentLevel {
			flush()
			activeParent = b.parentSection
		}
		if activeParent == "" {
			// Document preface before the first heading.
			activeParent = b.parentSection
		}

		if b.oversize {
			// Indivisible unit above the budget: its own chunk, flagged
			// so the filter can tag it rather than truncate it.
			flush()
			cur = []block{b}
			flush()
			continue
		}

		if curTokens+b.tokens <= c.maxTokens {
			cur = append(cur, b)
			curTokens += b.tokens
			continue
		}

		before := len(drafts)
		flush()

		// Overlap only within the same parent section.
		if len(drafts) > before && c.overlapTokens > 0 && drafts[len(drafts)-1].ParentSection == activeParent {
			tail := tailText(drafts[len(drafts)-1].Content, c.overlapTokens)
			if tail != "" {
				cur = append(cur, block{
					text:          tail,
					tokens:        c.count(tail),
					parentSection: activeParent,
					kind:          blockText,
				})
			}
		}
		cur = append(cur, b)
		curTokens = 0
		for _, cb := range cur {
			curTokens += cb.tokens
		}
	}
	flush()

	return reindex(c.mergeSmallTails(drafts))
}

// assemble joins accumulated blocks into one draft. Groups holding only
// headings are dropped: a heading with no body is not a chunk.
func (c *Chunker) assemble(group []block, parent string) (domain.ChunkDraft, bool) {
	onlyHeadings := true
	for _, b := range group {
		if b.kind != blockHeading {
			onlyHeadings = false
			break
		}
	}
	if onlyHeadings {
		return domain.ChunkDraft{}, false
	}

	parts := make([]string, 0, len(group))
	sectionPath := ""
	bodyPath := ""
	var blockTypes []string
	oversize := false
	for _, b := range group {
		parts = append(parts, b.text)
		if sectionPath == "" {
			sectionPath = b.sectionPath
		}
		// A leading heading's own path stops at itself; the first body
		// block carries the full depth.
		if bodyPath == "" && b.kind != blockHeading {
			bodyPath = b.sectionPath
		}
		if len(blockTypes) == 0 || blockTypes[len(blockTypes)-1] != b.kind {
			blockTypes = append(blockTypes, b.kind)
		}
		oversize = oversize || b.oversize
	}
	if bodyPath != "" {
		sectionPath = bodyPath
	}

	content := strings.TrimSpace(strings.Join(parts, "\n\n"))
	tokens := c.count(content)
	if tokens < 1 {
		return domain.ChunkDraft{}, false
	}

	return domain.ChunkDraft{
		Content:       content,
		TokenCount:    tokens,
		SectionPath:   sectionPath,
		ParentSection: parent,
		BlockTypes:    blockTypes,
		Oversize:      oversize,
	}, true
}

// mergeSmallTails folds chunks below minTokens into their predecessor
// when both share a parent section and the merge stays within budget.
func (c *Chunker) mergeSmallTails(drafts []domain.ChunkDraft) []domain.ChunkDraft {
	var merged []domain.ChunkDraft
	for _, d := range drafts {
		if len(merged) > 0 && d.TokenCount < c.minTokens && !d.Oversize {
			prev := &merged[len(merged)-1]
			if prev.ParentSection == d.ParentSection && !prev.Oversize {
				combined := prev.Content + "\n\n" + d.Content
				if t := c.count(combined); t <= c.maxTokens {
					prev.Content = combined
					prev.TokenCount = t
					prev.BlockTypes = appendBlockTypes(prev.BlockTypes, d.BlockTypes)
					continue
				}
			}
		}
		merged = append(merged, d)
	}
	return merged
}

// expandOversized splits blocks above the budget. Text and list blocks
// split by paragraph, then sentence, then hard length; indivisible
// table/code blocks are kept whole and flagged oversize.
func (c *Chunker) expandOversized(blocks []block) []block {
	out := make([]block, 0, len(blocks))
	for _, b := range blocks {
		if b.tokens <= c.maxTokens {
			out = append(out, b)
			continue
		}
		switch b.kind {
		case blockTable, blockCode:
			b.oversize = true
			out = append(out, b)
		default:
			for _, piece := range c.splitBigText(b.text) {
				nb := b
				nb.text = piece
				nb.tokens = c.count(piece)
				nb.oversize = nb.tokens > c.maxTokens
				out = append(out, nb)
			}
		}
	}
	return out
}

var paragraphSplitRe = regexp.MustCompile(`\n{2,}`)

func (c *Chunker) splitBigText(text string) []string {
	var out []string
	for _, p := range paragraphSplitRe.Split(strings.TrimSpace(text), -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if c.count(p) <= c.maxTokens {
			out = append(out, p)
			continue
		}

		cur := ""
		for _, s := range splitSentences(p) {
			cand := s
			if cur != "" {
				cand = cur + " " + s
			}
			if c.count(cand) <= c.maxTokens {
				cur = cand
				continue
			}
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			if c.count(s) <= c.maxTokens {
				cur = s
				continue
			}
			out = append(out, hardSplit(s, c.maxTokens*4)...)
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// splitSentences breaks text on sentence terminators.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardSplit chops a string into pieces of at most step runes.
func hardSplit(s string, step int) []string {
	if step < 1 {
		step = 1
	}
	runes := []rune(s)
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + step
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// tailText returns roughly the last n tokens of text, on a rune
// boundary, for overlap carry-over.
func tailText(text string, tokens int) string {
	runes := []rune(text)
	n := tokens * 4
	if n >= len(runes) {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}

func appendBlockTypes(dst, src []string) []string {
	for _, t := range src {
		if len(dst) == 0 || dst[len(dst)-1] != t {
			dst = append(dst, t)
		}
	}
	return dst
}

func reindex(drafts []domain.ChunkDraft) []domain.ChunkDraft {
	for i := range drafts {
		drafts[i].Index = i
	}
	return drafts
}

const imageMarker = normalize.ImageMarker
