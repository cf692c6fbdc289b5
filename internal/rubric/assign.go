package rubric

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/rubricast/rubricast/internal/engine"
)

// AssignStatus is the outcome of an assignment run.
type AssignStatus string

const (
	// StatusAssigned: a breakdown was computed and written to the record.
	StatusAssigned AssignStatus = "assigned"
	// StatusCleared: the total was unset, so the breakdown was cleared.
	StatusCleared AssignStatus = "cleared"
	// StatusUnreachable: no exact decomposition exists for the total; the
	// record was left untouched.
	StatusUnreachable AssignStatus = "unreachable"
)

// Assigner decomposes a student's entered total into item scores, then each
// item score into element scores, choosing balanced breakdowns throughout.
// The random source drives the balanced tie-break and is injected so tests
// can pin it.
type Assigner struct {
	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

func NewAssigner(rng *rand.Rand) *Assigner { return &Assigner{rng: rng} }

// Assign recomputes rec's breakdown from rec.Total against res and r.
//
// Unset total clears the breakdown. A total with no exact decomposition
// over the per-item sums leaves the record exactly as it was and reports
// StatusUnreachable; callers decide whether to surface that. Totals drawn
// from res.TotalSums always decompose, and each inner element search is
// then non-empty by construction, so an engine error here means res and r
// are out of sync.
func (a *Assigner) Assign(rec *StudentRecord, res Results, r Rubric) (AssignStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.Total == nil {
		rec.ItemScores = nil
		rec.ElementScores = nil
		return StatusCleared, nil
	}
	itemCands := engine.Decompose(*rec.Total, res.PerItemSums)
	if len(itemCands) == 0 {
		return StatusUnreachable, nil
	}
	itemScores, err := engine.SelectBalanced(a.rng, itemCands)
	if err != nil {
		return "", err
	}
	elementScores := make([][]int, len(r.Items))
	for i, it := range r.Items {
		cands := engine.Decompose(itemScores[i], elementGroups(it))
		pick, err := engine.SelectBalanced(a.rng, cands)
		if err != nil {
			return "", fmt.Errorf("item %d: %w", i+1, err)
		}
		elementScores[i] = pick
	}
	// Mutate only once the whole breakdown is in hand.
	rec.ItemScores = itemScores
	rec.ElementScores = elementScores
	return StatusAssigned, nil
}
