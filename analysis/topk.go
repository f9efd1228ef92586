// Package analysis holds the helpers shared by the incremental
// analyzers: the top-K ranking used by pinning and allocation, and the
// bounded History window used by GC and CPU. Each analyzer
// itself lives in its own subpackage, mirroring the teacher's one-
// subpackage-per-strategy layout (strategies/sandwich, dex/uniswap).
package analysis

import "sort"

// Ranked is one entry in a top-K list: a key and its primary metric.
type Ranked struct {
	Key   string
	Count int64
}

// TopK returns the top n entries from counts, ranked by descending
// Count, ties broken by ascending Key for determinism (spec.md §4.2,
// §8 invariant 5).
func TopK(counts map[string]int64, n int) []Ranked {
	ranked := make([]Ranked, 0, len(counts))
	for k, v := range counts {
		ranked = append(ranked, Ranked{Key: k, Count: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
