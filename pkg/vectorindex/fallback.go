package vectorindex

import (
	"context"
	"sort"
)

// UniformFallback implements the §4.2 vector-store fallback contract:
// "uniform similarity = 0.5 with deterministic ordering by id". ids is
// the candidate pool the caller still has in hand (e.g. the chunk ids it
// attempted to query against) when the breaker is OPEN.
func UniformFallback(ids []string) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		matches := make([]Match, 0, len(sorted))
		for _, id := range sorted {
			matches = append(matches, Match{ID: id, Score: 0.5})
		}
		return matches, nil
	}
}
