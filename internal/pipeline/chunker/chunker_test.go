package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokens counts whitespace-separated words, which makes test
// budgets easy to reason about.
func wordTokens(text string) int {
	return len(strings.Fields(text))
}

func TestHeuristicTokens(t *testing.T) {
	assert.Equal(t, 0, HeuristicTokens(""))
	assert.Equal(t, 0, HeuristicTokens("   "))
	assert.Equal(t, 1, HeuristicTokens("ab"))
	assert.Equal(t, 3, HeuristicTokens("abcdefghijkl"))
}

func TestChunkEmptyInput(t *testing.T) {
	c := New()
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("\n\n   \n"))
}

func TestChunkHeadingOnlyDocument(t *testing.T) {
	c := New()
	drafts := c.Chunk("# Physics\n\n## Optics\n\n### Lenses\n")
	assert.Empty(t, drafts, "headings with no body must not produce chunks")
}

func TestChunkIndexesContiguous(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(10), WithMinTokens(0))
	var sb strings.Builder
	sb.WriteString("# Doc\n\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "## Section %d\n\nalpha beta gamma delta epsilon zeta eta theta.\n\n", i)
	}
	drafts := c.Chunk(sb.String())
	require.NotEmpty(t, drafts)
	for i, d := range drafts {
		assert.Equal(t, i, d.Index)
	}
}

func TestChunkRespectsParentSectionBoundary(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(100), WithMinTokens(0))
	text := "## Mechanics\n\nNewton laws of motion.\n\n## Optics\n\nSnell law of refraction.\n"
	drafts := c.Chunk(text)
	require.Len(t, drafts, 2, "a chunk must never span two parent sections")
	assert.Equal(t, "Mechanics", drafts[0].ParentSection)
	assert.Equal(t, "Optics", drafts[1].ParentSection)
	assert.Contains(t, drafts[0].Content, "Newton")
	assert.NotContains(t, drafts[0].Content, "Snell")
}

func TestChunkGreedyAccumulationWithinBudget(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(12), WithMinTokens(0))
	text := "## Topic\n\none two three four.\n\nfive six seven eight.\n\nnine ten eleven twelve.\n"
	drafts := c.Chunk(text)
	require.GreaterOrEqual(t, len(drafts), 2)
	for _, d := range drafts {
		assert.LessOrEqual(t, d.TokenCount, 12, "chunk %d over budget: %q", d.Index, d.Content)
	}
}

func TestChunkSectionPathTracksHeadingStack(t *testing.T) {
	c := New(WithTokenCounter(wordTokens))
	text := "# Physics\n\n## Optics\n\n### Lenses\n\nA convex lens converges light rays.\n"
	drafts := c.Chunk(text)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Physics > Optics > Lenses", drafts[0].SectionPath)
	assert.Equal(t, "Optics", drafts[0].ParentSection)
}

func TestChunkOversizedTextSplitsByParagraph(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(6), WithMinTokens(0))
	text := "## S\n\nalpha beta gamma delta. epsilon zeta eta theta. iota kappa lambda mu.\n"
	drafts := c.Chunk(text)
	require.GreaterOrEqual(t, len(drafts), 2)
	for _, d := range drafts {
		assert.False(t, d.Oversize)
		assert.LessOrEqual(t, d.TokenCount, 6)
	}
}

func TestChunkOversizedTableKeptWholeAndFlagged(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(5), WithMinTokens(0))
	var sb strings.Builder
	sb.WriteString("## Data\n\n")
	sb.WriteString("| a | b | c |\n|---|---|---|\n")
	for i := 0; i < 6; i++ {
		sb.WriteString("| one | two | three |\n")
	}
	drafts := c.Chunk(sb.String())
	var found bool
	for _, d := range drafts {
		if d.Oversize {
			found = true
			assert.Contains(t, d.BlockTypes, "table")
			assert.Greater(t, d.TokenCount, 5, "oversize chunk must keep the whole unit")
		}
	}
	assert.True(t, found, "expected an oversize table chunk")
}

func TestChunkOverlapConfinedToParentSection(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(8), WithMinTokens(0), WithOverlapTokens(3))
	text := "## A\n\none two three four five six.\n\nseven eight nine ten eleven twelve.\n\n## B\n\nalpha beta gamma delta.\n"
	drafts := c.Chunk(text)
	require.GreaterOrEqual(t, len(drafts), 3)

	last := drafts[len(drafts)-1]
	assert.Equal(t, "B", last.ParentSection)
	assert.NotContains(t, last.Content, "twelve", "overlap must not leak across a parent section boundary")
}

func TestChunkSmallTailMergedIntoPredecessor(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(20), WithMinTokens(3))
	text := "## S\n\none two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen.\n\ntail.\n"
	drafts := c.Chunk(text)
	require.Len(t, drafts, 1, "sub-minimum tail should merge into the previous chunk")
	assert.Contains(t, drafts[0].Content, "tail.")
}

func TestChunkSmallTailNotMergedAcrossSections(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(50), WithMinTokens(5))
	text := "## A\n\none two three four five six seven eight nine ten.\n\n## B\n\ntiny tail.\n"
	drafts := c.Chunk(text)
	require.Len(t, drafts, 2)
	assert.Equal(t, "B", drafts[1].ParentSection)
}

func TestChunkCodeFenceStaysOneBlock(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(100))
	text := "## Code\n\nIntro line before the snippet here.\n\n```python\nfor i in range(10):\n    print(i)\n```\n"
	drafts := c.Chunk(text)
	require.Len(t, drafts, 1)
	assert.Contains(t, drafts[0].BlockTypes, "code")
	assert.Contains(t, drafts[0].Content, "```python")
}

func TestChunkDeterministic(t *testing.T) {
	c := New(WithTokenCounter(wordTokens), WithMaxTokens(10), WithOverlapTokens(2))
	text := "# Doc\n\n## One\n\nalpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu.\n\n## Two\n\nnu xi omicron pi rho sigma.\n"
	a := c.Chunk(text)
	b := c.Chunk(text)
	assert.Equal(t, a, b)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second one! Third?")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?"}, got)
}

func TestHardSplit(t *testing.T) {
	pieces := hardSplit(strings.Repeat("a", 10), 4)
	assert.Equal(t, []string{"aaaa", "aaaa", "aa"}, pieces)
}
