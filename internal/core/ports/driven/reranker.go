package driven

import "context"

// RerankScorer scores query/passage pairs with a cross-encoder style
// relevance model. This is an optional capability: when absent the
// retrieval pipeline passes the first-stage order through unchanged.
type RerankScorer interface {
	// Score returns one relevance score per passage, in input order.
	// Higher is more relevant. Unreachable models should wrap
	// domain.ErrRerankUnavailable so the caller can degrade.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}
