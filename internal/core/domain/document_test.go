package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentValidate(t *testing.T) {
	valid := Document{Source: "physics/ch1.pdf", Title: "Chapter 1", Exam: "GATE_DA"}
	assert.NoError(t, valid.Validate())

	missingSource := valid
	missingSource.Source = " "
	assert.ErrorIs(t, missingSource.Validate(), ErrInvalidInput)

	missingTitle := valid
	missingTitle.Title = ""
	assert.ErrorIs(t, missingTitle.Validate(), ErrInvalidInput)

	missingExam := valid
	missingExam.Exam = ""
	assert.ErrorIs(t, missingExam.Validate(), ErrInvalidInput)
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("doc-1", 0)
	b := ChunkID("doc-1", 0)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, ChunkID("doc-1", 1))
	assert.NotEqual(t, a, ChunkID("doc-2", 0))
}

func TestHashContentIgnoresSurroundingWhitespace(t *testing.T) {
	assert.Equal(t, HashContent("hello world"), HashContent("  hello world\n"))
	assert.NotEqual(t, HashContent("hello world"), HashContent("hello  world"))
}

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument(IngestRequest{Source: "a.md", Title: "A", Exam: "GATE_CS"})
	require.NotEmpty(t, doc.ID)
	assert.NotNil(t, doc.Metadata)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestRetrievalFiltersValidate(t *testing.T) {
	f := RetrievalFilters{Exam: "GATE_DA", ExcludeTags: []string{" Front_Matter ", "", "boilerplate"}}
	require.NoError(t, f.Validate())
	assert.Equal(t, []string{"front_matter", "boilerplate"}, f.ExcludeTags)

	empty := RetrievalFilters{}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidInput)
}

func TestRetrievalFiltersExcludes(t *testing.T) {
	f := RetrievalFilters{Exam: "GATE_DA", ExcludeTags: []string{TagFrontMatter}}
	assert.True(t, f.Excludes([]string{TagLowSignal, TagFrontMatter}))
	assert.False(t, f.Excludes([]string{TagLowSignal}))
	assert.False(t, f.Excludes(nil))
}

func TestParseTutorMode(t *testing.T) {
	mode, err := ParseTutorMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDoubt, mode)

	mode, err = ParseTutorMode("Practice")
	require.NoError(t, err)
	assert.Equal(t, ModePractice, mode)

	_, err = ParseTutorMode("exam-cram")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.InDelta(t, 1.0, SimilarityFromDistance(0), 1e-9)
	assert.Greater(t, SimilarityFromDistance(0.2), SimilarityFromDistance(0.8))
	assert.Greater(t, SimilarityFromDistance(1.5), 0.0)
}
