package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/logger"
)

// GoldQuery is one labelled line of a gold JSONL file: the query, its
// taxonomy filters and the chunk IDs a good retrieval should surface.
type GoldQuery struct {
	Query            string   `json:"query"`
	Exam             string   `json:"exam"`
	Subject          string   `json:"subject"`
	Topic            string   `json:"topic"`
	ExpectedChunkIDs []string `json:"expected_chunk_ids"`
}

// Report holds the aggregate metrics over a gold set.
type Report struct {
	Count     int     `json:"count"`
	RecallAt5 float64 `json:"recall_at_5"`
	MRR       float64 `json:"mrr"`
}

// Runner drives the retrieval service over a gold set and scores the
// ranked results.
type Runner struct {
	retriever driving.RetrieveService
	topK      int
	topN      int
}

// NewRunner creates an evaluation runner. Zero topK/topN take the
// retriever's defaults.
func NewRunner(retriever driving.RetrieveService, topK, topN int) *Runner {
	return &Runner{retriever: retriever, topK: topK, topN: topN}
}

// LoadGold parses a gold JSONL stream. Blank lines are skipped; a
// malformed line fails the whole load so a broken gold file never
// silently shrinks the benchmark.
func LoadGold(r io.Reader) ([]GoldQuery, error) {
	var queries []GoldQuery
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var q GoldQuery
		if err := json.Unmarshal([]byte(text), &q); err != nil {
			return nil, fmt.Errorf("gold line %d: %w", line, err)
		}
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("gold line %d: %w: empty query", line, domain.ErrInvalidInput)
		}
		queries = append(queries, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read gold file: %w", err)
	}
	return queries, nil
}

// Run retrieves every gold query and reports recall@5 and MRR over the
// first-hit ranks.
func (r *Runner) Run(ctx context.Context, queries []GoldQuery) (*Report, error) {
	ranks := make([]int, 0, len(queries))
	for _, q := range queries {
		filters := domain.RetrievalFilters{
			Exam:    q.Exam,
			Subject: q.Subject,
			Topic:   q.Topic,
		}
		results, err := r.retriever.Retrieve(ctx, q.Query, filters, r.topK, r.topN)
		if err != nil {
			return nil, fmt.Errorf("retrieve %q: %w", q.Query, err)
		}
		rank := firstHitRank(results, q.ExpectedChunkIDs)
		if rank == 0 {
			logger.Debug("Eval miss: %q (expected %v)", q.Query, q.ExpectedChunkIDs)
		}
		ranks = append(ranks, rank)
	}

	return &Report{
		Count:     len(ranks),
		RecallAt5: RecallAtK(ranks, 5),
		MRR:       MRR(ranks),
	}, nil
}

// firstHitRank returns the 1-based rank of the first expected chunk in
// the results, or 0 when none appears.
func firstHitRank(results []domain.RetrievalCandidate, expected []string) int {
	want := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		want[id] = struct{}{}
	}
	for i, c := range results {
		if _, ok := want[c.Chunk.ID()]; ok {
			return i + 1
		}
	}
	return 0
}
