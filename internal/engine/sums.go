// Package engine implements the score combination and decomposition
// algorithms behind rubric breakdowns: generating every attainable total
// from nested point-value sets, recovering exact-sum breakdowns for a given
// total, and picking one balanced breakdown among the exact matches.
package engine

import "sort"

// GenerateSums returns every total obtainable by picking exactly one value
// from each group, deduplicated and sorted descending. An empty group list
// yields an empty result.
//
// The result is exact and complete: no truncation or sampling. Decompose
// relies on that completeness, so callers must not feed it a partial set.
func GenerateSums(groups [][]int) []int {
	if len(groups) == 0 {
		return nil
	}
	sums := dedup(append([]int(nil), groups[0]...))
	for _, g := range groups[1:] {
		next := make([]int, 0, len(sums)*len(g))
		for _, s := range sums {
			for _, v := range g {
				next = append(next, s+v)
			}
		}
		// Dedup every step to keep intermediates small.
		sums = dedup(next)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sums)))
	return sums
}

func dedup(xs []int) []int {
	seen := make(map[int]struct{}, len(xs))
	out := xs[:0]
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
