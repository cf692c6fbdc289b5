package rubric

// Element is one evaluation sub-criterion: a fixed menu of allowed point
// values, every value a positive integer.
type Element struct {
	Title  string `json:"title,omitempty"`
	Values []int  `json:"values"`
}

// Item is a top-level scoring category made of elements.
type Item struct {
	Title    string    `json:"title,omitempty"`
	Elements []Element `json:"elements"`
}

// Rubric is the full scoring hierarchy an evaluator edits. It is replaced
// wholesale on edit; any write invalidates derived results and every
// student's assigned breakdown.
type Rubric struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Items     []Item `json:"items"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// Results holds the attainable sums derived from a rubric: one sum set per
// item plus the attainable grand totals. Derived data only — recomputed from
// the stored rubric on demand, never persisted.
type Results struct {
	PerItemSums [][]int `json:"per_item_sums"`
	TotalSums   []int   `json:"total_sums"`
}

// StudentRecord is one roster entry. UserID links the entry to a login
// account; students may only read their own linked record. Total nil means
// no score was entered; then ItemScores and ElementScores are empty. When
// Total is set and a breakdown has been assigned, ItemScores sums to *Total
// and ElementScores[i] sums to ItemScores[i].
type StudentRecord struct {
	ID            string  `json:"id"`
	RubricID      string  `json:"rubric_id"`
	Name          string  `json:"name"`
	UserID        string  `json:"user_id,omitempty"`
	Total         *int    `json:"total,omitempty"`
	ItemScores    []int   `json:"item_scores,omitempty"`
	ElementScores [][]int `json:"element_scores,omitempty"`
}

// elementGroups returns the item's value sets in element order, the shape
// the engine consumes.
func elementGroups(it Item) [][]int {
	groups := make([][]int, len(it.Elements))
	for i, el := range it.Elements {
		groups[i] = el.Values
	}
	return groups
}

// Combinations is the product of value-set sizes across the rubric, the
// size of the full choice space. Callers use it to enforce a deployment
// ceiling before running the exhaustive search.
func Combinations(r Rubric) int {
	n := 1
	for _, it := range r.Items {
		for _, el := range it.Elements {
			n *= len(el.Values)
		}
	}
	return n
}
