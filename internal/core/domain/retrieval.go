package domain

import (
	"fmt"
	"strings"
)

// RetrievalFilters restricts a similarity search. Exam is required;
// the rest are optional exact-match predicates. ExcludeTags removes
// any chunk carrying one of the listed tags from candidacy at query
// time, so retrieval policy can change without re-ingestion.
type RetrievalFilters struct {
	Exam    string
	Subject string
	Topic   string
	DocType string
	Year    int

	// ExcludeTags lists quality tags that disqualify a chunk.
	ExcludeTags []string

	// MinQualityScore drops chunks scored below the floor.
	// Zero means no floor.
	MinQualityScore float64
}

// Validate checks that the required filter fields are present and
// normalises the exclusion tags.
func (f *RetrievalFilters) Validate() error {
	if strings.TrimSpace(f.Exam) == "" {
		return fmt.Errorf("%w: exam filter is required", ErrInvalidInput)
	}
	cleaned := f.ExcludeTags[:0]
	for _, t := range f.ExcludeTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	f.ExcludeTags = cleaned
	return nil
}

// Excludes reports whether a chunk carrying the given tags is removed
// from candidacy by this filter.
func (f *RetrievalFilters) Excludes(tags []string) bool {
	for _, ex := range f.ExcludeTags {
		for _, t := range tags {
			if t == ex {
				return true
			}
		}
	}
	return false
}

// RetrievalCandidate is a transient, per-query result: a chunk plus its
// distance-derived score and, when the rerank stage ran, a rerank score.
// It is never persisted.
type RetrievalCandidate struct {
	Chunk Chunk

	// Distance is the cosine distance to the query (lower is closer).
	Distance float64

	// Score is a stable similarity score in (0, 1] derived from Distance.
	Score float64

	// RerankScore is set only when the rerank stage rescored this
	// candidate; ordering is then descending by this value.
	RerankScore *float64
}

// SimilarityFromDistance converts a cosine distance into a positive,
// monotonically decreasing score in (0, 1]. Avoids the negative values
// that 1-distance produces for distances above 1.
func SimilarityFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}
