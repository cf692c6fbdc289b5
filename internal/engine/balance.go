package engine

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// ErrNoCandidates is returned by SelectBalanced when it is handed an empty
// candidate set. That is a caller bug: the orchestrator only calls it after
// a non-empty Decompose result.
var ErrNoCandidates = errors.New("engine: no candidate decompositions")

// balancedFraction is the share of lowest-spread candidates the selector
// draws from.
const balancedFraction = 0.3

// SelectBalanced picks one decomposition from cands, favoring evenly spread
// ones. Candidates are ranked ascending by population standard deviation
// (stable, so equal-spread candidates keep their input order); the pick is
// uniform over the top max(1, ceil(0.3*n)) of the ranking.
//
// The randomness is deliberate: repeated calls may return different, equally
// balanced results. rng is injected so tests can pin it.
func SelectBalanced(rng *rand.Rand, cands [][]int) ([]int, error) {
	switch len(cands) {
	case 0:
		return nil, ErrNoCandidates
	case 1:
		return cands[0], nil
	}
	type scored struct {
		dec    []int
		spread float64
	}
	ranked := make([]scored, len(cands))
	for i, d := range cands {
		ranked[i] = scored{dec: d, spread: stdDev(d)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].spread < ranked[j].spread })
	top := int(math.Ceil(balancedFraction * float64(len(ranked))))
	if top < 1 {
		top = 1
	}
	return ranked[rng.Intn(top)].dec, nil
}

// stdDev is the population standard deviation of xs.
func stdDev(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += float64(x)
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		d := float64(x) - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}
