package rubric

import "context"

type ListOpts struct {
	Q      string // optional title filter
	Limit  int
	Offset int
}

// RubricSummary is the list view of a rubric.
type RubricSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Items     int    `json:"items"`
	UpdatedAt int64  `json:"updated_at"`
}

type Store interface {
	// PutRubric upserts the rubric as a whole value. Any write clears every
	// student's assigned breakdown for that rubric (totals survive so they
	// can be re-decomposed against the new hierarchy).
	PutRubric(ctx context.Context, r Rubric) (Rubric, error)
	GetRubric(ctx context.Context, id string) (Rubric, error)
	ListRubrics(ctx context.Context, opts ListOpts) ([]RubricSummary, error)
	DeleteRubric(ctx context.Context, id string) error

	// UpsertStudent writes identity fields (name, account link) only;
	// scores are untouched.
	UpsertStudent(ctx context.Context, rec StudentRecord) (StudentRecord, error)
	GetStudent(ctx context.Context, rubricID, id string) (StudentRecord, error)
	ListStudents(ctx context.Context, rubricID string) ([]StudentRecord, error)

	// SaveAssignment persists rec's total and breakdown (nil total clears
	// all three).
	SaveAssignment(ctx context.Context, rec StudentRecord) error
}
