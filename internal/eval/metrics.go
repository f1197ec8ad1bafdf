// Package eval measures retrieval quality against a labelled query
// set. Metrics use first-hit ranks (1-based, 0 for a miss) so a gold
// file only needs the expected chunk IDs per query.
package eval

import (
	"math"
	"sort"
)

// RecallAtK is the fraction of queries whose first relevant result
// ranks within the top k.
func RecallAtK(ranks []int, k int) float64 {
	if len(ranks) == 0 {
		return 0
	}
	hits := 0
	for _, r := range ranks {
		if r >= 1 && r <= k {
			hits++
		}
	}
	return float64(hits) / float64(len(ranks))
}

// MRR is the mean reciprocal rank over all queries; misses contribute
// zero.
func MRR(ranks []int) float64 {
	if len(ranks) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range ranks {
		if r > 0 {
			sum += 1.0 / float64(r)
		}
	}
	return sum / float64(len(ranks))
}

// NDCGAtK computes normalised discounted cumulative gain at k over
// graded relevance lists, one per query in predicted rank order.
func NDCGAtK(relevances [][]int, k int) float64 {
	if len(relevances) == 0 {
		return 0
	}

	dcg := func(rel []int) float64 {
		s := 0.0
		for i, r := range rel {
			if i >= k {
				break
			}
			s += (math.Pow(2, float64(r)) - 1) / math.Log2(float64(i)+2)
		}
		return s
	}

	total := 0.0
	for _, rel := range relevances {
		ideal := make([]int, len(rel))
		copy(ideal, rel)
		sort.Sort(sort.Reverse(sort.IntSlice(ideal)))

		denom := dcg(ideal)
		if denom == 0 {
			denom = 1
		}
		total += dcg(rel) / denom
	}
	return total / float64(len(relevances))
}
