// Package filter classifies chunk drafts after chunking and before
// embedding. It tags structural noise (front matter, boilerplate,
// image placeholders, duplicates, low-signal fragments) and assigns a
// quality score. Tagged chunks are still indexed; exclusion happens at
// query time. A chunk is only dropped when a hard cap is exceeded.
package filter

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/pipeline/normalize"
)

// Default classification thresholds.
const (
	DefaultFrontMatterWindow = 3
	DefaultMinAlnumRatio     = 0.25
	DefaultMinTokens         = 24
	DefaultLargeChunkTokens  = 200
)

// Per-tag quality penalties. A chunk with no tags scores 1.0; every
// tag pulls the score down, and a duplicate drops to zero.
var tagPenalties = map[string]float64{
	domain.TagFrontMatter: 0.7,
	domain.TagBoilerplate: 0.6,
	domain.TagImageOnly:   0.7,
	domain.TagDuplicate:   1.0,
	domain.TagLowSignal:   0.3,
	domain.TagOversize:    0.2,
}

// largeChunkBonus rewards substantial chunks so ties between tagged
// chunks resolve toward the ones with more content.
const largeChunkBonus = 0.05

var frontMatterKeywords = []string{
	"table of contents", "contents", "preface", "acknowledgement",
	"acknowledgment", "copyright", "all rights reserved", "isbn",
	"published by", "edition",
}

var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page \d+( of \d+)?$`),
	regexp.MustCompile(`(?i)copyright|©|\(c\) \d{4}|all rights reserved`),
	regexp.MustCompile(`(?i)^(scanned|downloaded) (by|from)`),
	regexp.MustCompile(`(?i)visit (us at )?(www\.|https?://)`),
}

// Filter classifies drafts for a single document. It is not safe for
// concurrent use; create one per ingestion run.
type Filter struct {
	frontWindow   int
	minAlnumRatio float64
	minTokens     int
	maxPerDoc     int
	maxPerParent  int

	// seenHashes maps content hash to first-seen chunk index within the
	// current document.
	seenHashes map[string]int
	// boilerplateHashes is a rolling set fed across documents so repeated
	// headers and footers are caught on later ingests too.
	boilerplateHashes map[string]struct{}
}

// Option configures a Filter.
type Option func(*Filter)

// WithFrontMatterWindow sets how many leading chunks are eligible for
// the front_matter tag.
func WithFrontMatterWindow(n int) Option {
	return func(f *Filter) {
		if n >= 0 {
			f.frontWindow = n
		}
	}
}

// WithMinTokens sets the low_signal threshold.
func WithMinTokens(n int) Option {
	return func(f *Filter) {
		if n >= 0 {
			f.minTokens = n
		}
	}
}

// WithMinAlnumRatio sets the image_only alphanumeric ratio floor.
func WithMinAlnumRatio(r float64) Option {
	return func(f *Filter) {
		if r > 0 && r < 1 {
			f.minAlnumRatio = r
		}
	}
}

// WithMaxChunksPerDoc caps chunks per document; zero means unlimited.
func WithMaxChunksPerDoc(n int) Option {
	return func(f *Filter) {
		if n >= 0 {
			f.maxPerDoc = n
		}
	}
}

// WithMaxChunksPerParent caps chunks per parent section; zero means
// unlimited.
func WithMaxChunksPerParent(n int) Option {
	return func(f *Filter) {
		if n >= 0 {
			f.maxPerParent = n
		}
	}
}

// WithBoilerplateHashes seeds the rolling boilerplate hash set, letting
// callers carry it across documents.
func WithBoilerplateHashes(hashes map[string]struct{}) Option {
	return func(f *Filter) {
		if hashes != nil {
			f.boilerplateHashes = hashes
		}
	}
}

// New creates a filter with the given options.
func New(opts ...Option) *Filter {
	f := &Filter{
		frontWindow:       DefaultFrontMatterWindow,
		minAlnumRatio:     DefaultMinAlnumRatio,
		minTokens:         DefaultMinTokens,
		seenHashes:        make(map[string]int),
		boilerplateHashes: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply classifies every draft in document order, then enforces the
// per-document and per-parent caps. Returned drafts are reindexed
// contiguously from zero.
func (f *Filter) Apply(drafts []domain.ChunkDraft) []domain.ChunkDraft {
	classified := make([]domain.ChunkDraft, len(drafts))
	for i, d := range drafts {
		classified[i] = f.classify(d, i)
	}
	kept := f.enforceCaps(classified)
	for i := range kept {
		kept[i].Index = i
	}
	return kept
}

// classify tags a single draft and computes its quality score.
// Classification is purely lexical and positional; it never inspects
// embeddings.
func (f *Filter) classify(d domain.ChunkDraft, position int) domain.ChunkDraft {
	var tags []string
	addTag := func(tag string) {
		for _, t := range tags {
			if t == tag {
				return
			}
		}
		tags = append(tags, tag)
	}

	content := strings.TrimSpace(d.Content)
	hash := domain.HashContent(content)

	if f.isFrontMatter(d, position) {
		addTag(domain.TagFrontMatter)
	}
	if f.isBoilerplate(content, hash) {
		addTag(domain.TagBoilerplate)
	}
	if isImageOnly(content, f.minAlnumRatio) {
		addTag(domain.TagImageOnly)
	}
	if first, seen := f.seenHashes[hash]; seen && first != position {
		addTag(domain.TagDuplicate)
	} else if !seen {
		f.seenHashes[hash] = position
	}
	if d.TokenCount < f.minTokens {
		addTag(domain.TagLowSignal)
	}
	if d.Oversize {
		addTag(domain.TagOversize)
	}

	sort.Strings(tags)
	d.Tags = tags
	d.QualityScore = Score(tags, d.TokenCount)
	return d
}

// Score computes the quality score for a tag set and token count.
// Deterministic, clamped to [0,1]; any tag ranks the chunk strictly
// below an otherwise-identical untagged chunk.
func Score(tags []string, tokenCount int) float64 {
	score := 1.0
	for _, t := range tags {
		score -= tagPenalties[t]
	}
	if tokenCount >= DefaultLargeChunkTokens {
		score += largeChunkBonus
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (f *Filter) isFrontMatter(d domain.ChunkDraft, position int) bool {
	section := strings.ToLower(d.SectionPath + " " + d.ParentSection)
	for _, kw := range frontMatterKeywords {
		if strings.Contains(section, kw) {
			return true
		}
	}
	if position >= f.frontWindow {
		return false
	}
	lower := strings.ToLower(d.Content)
	for _, kw := range frontMatterKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	// Title pages and contents listings read as short lines with little
	// sentence structure.
	return lexicalDensity(d.Content) < 0.35
}

func (f *Filter) isBoilerplate(content, hash string) bool {
	if _, ok := f.boilerplateHashes[hash]; ok {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, re := range boilerplatePatterns {
			if re.MatchString(line) {
				f.boilerplateHashes[hash] = struct{}{}
				return true
			}
		}
	}
	return false
}

// isImageOnly reports whether the chunk is an image placeholder or has
// almost no extractable text.
func isImageOnly(content string, minRatio float64) bool {
	stripped := strings.ReplaceAll(content, normalize.ImageMarker, "")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return strings.Contains(content, normalize.ImageMarker)
	}
	return alnumRatio(content) < minRatio
}

func alnumRatio(s string) float64 {
	total, alnum := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

// lexicalDensity is the fraction of words carrying sentence structure:
// words in lines that end with terminal punctuation.
func lexicalDensity(content string) float64 {
	total, inSentences := 0, 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words := len(strings.Fields(line))
		total += words
		if strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?") {
			inSentences += words
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inSentences) / float64(total)
}

// enforceCaps drops chunks when max_chunks_per_doc or
// max_chunks_per_parent is exceeded. Lowest quality score goes first;
// ties break on higher original index so earlier chunks survive.
func (f *Filter) enforceCaps(drafts []domain.ChunkDraft) []domain.ChunkDraft {
	dropped := make(map[int]bool)

	if f.maxPerParent > 0 {
		byParent := make(map[string][]int)
		for i, d := range drafts {
			byParent[d.ParentSection] = append(byParent[d.ParentSection], i)
		}
		for _, idxs := range byParent {
			markOverCap(drafts, idxs, f.maxPerParent, dropped)
		}
	}

	if f.maxPerDoc > 0 {
		remaining := make([]int, 0, len(drafts))
		for i := range drafts {
			if !dropped[i] {
				remaining = append(remaining, i)
			}
		}
		markOverCap(drafts, remaining, f.maxPerDoc, dropped)
	}

	kept := make([]domain.ChunkDraft, 0, len(drafts))
	for i, d := range drafts {
		if !dropped[i] {
			kept = append(kept, d)
		}
	}
	return kept
}

// markOverCap flags enough of idxs as dropped to bring the group within
// cap, removing the lowest-scored chunks first.
func markOverCap(drafts []domain.ChunkDraft, idxs []int, limit int, dropped map[int]bool) {
	over := len(idxs) - limit
	if over <= 0 {
		return
	}
	order := make([]int, len(idxs))
	copy(order, idxs)
	sort.SliceStable(order, func(a, b int) bool {
		da, db := drafts[order[a]], drafts[order[b]]
		if da.QualityScore != db.QualityScore {
			return da.QualityScore < db.QualityScore
		}
		return order[a] > order[b]
	})
	for _, i := range order[:over] {
		dropped[i] = true
	}
}
