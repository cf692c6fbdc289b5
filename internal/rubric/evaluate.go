// Package rubric holds the scoring hierarchy model, its evaluator, and the
// orchestrator that turns a student's entered total into a per-item and
// per-element breakdown.
package rubric

import (
	"errors"
	"fmt"

	"github.com/rubricast/rubricast/internal/engine"
)

// ValueError reports the first invalid point value found in a rubric.
// Positions are 1-based: item, then element within the item, then value
// within the element.
type ValueError struct {
	Item    int    `json:"item"`
	Element int    `json:"element"`
	Value   int    `json:"value"`
	Reason  string `json:"reason"`
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("rubric: item %d, element %d, value %d: %s", e.Item, e.Element, e.Value, e.Reason)
}

// ErrMalformed covers structural problems (an empty rubric, an item with no
// elements, an element with no values). These are edit-time rejections, not
// engine concerns.
var ErrMalformed = errors.New("rubric: malformed structure")

// ValidateStructure rejects empty levels so the engine only ever sees
// non-empty value sets.
func ValidateStructure(r Rubric) error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrMalformed)
	}
	for i, it := range r.Items {
		if len(it.Elements) == 0 {
			return fmt.Errorf("%w: item %d has no elements", ErrMalformed, i+1)
		}
		for j, el := range it.Elements {
			if len(el.Values) == 0 {
				return fmt.Errorf("%w: item %d, element %d has no values", ErrMalformed, i+1, j+1)
			}
		}
	}
	return nil
}

// Validate checks every point value, stopping at the first offender.
func Validate(r Rubric) error {
	for i, it := range r.Items {
		for j, el := range it.Elements {
			for k, v := range el.Values {
				if v <= 0 {
					return &ValueError{Item: i + 1, Element: j + 1, Value: k + 1, Reason: "must be a positive number"}
				}
			}
		}
	}
	return nil
}

// Evaluate computes the attainable sums per item and the attainable grand
// totals. It validates first and produces nothing on failure; stale Results
// held by the caller are its own business to discard.
func Evaluate(r Rubric) (Results, error) {
	if err := Validate(r); err != nil {
		return Results{}, err
	}
	per := make([][]int, len(r.Items))
	for i, it := range r.Items {
		per[i] = engine.GenerateSums(elementGroups(it))
	}
	return Results{PerItemSums: per, TotalSums: engine.GenerateSums(per)}, nil
}
