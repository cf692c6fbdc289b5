package rubric_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rubricast/rubricast/internal/db"
	"github.com/rubricast/rubricast/internal/rubric"
)

func openTestStore(t *testing.T) *rubric.SQLStore {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.TempDir()+"/test.db?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return rubric.NewSQLStore(dbh, "sqlite")
}

func sampleRubric() rubric.Rubric {
	return rubric.Rubric{
		Title: "Essay",
		Items: []rubric.Item{{
			Title: "Structure",
			Elements: []rubric.Element{
				{Title: "Outline", Values: []int{1, 2}},
				{Title: "Argument", Values: []int{10, 20}},
			},
		}},
	}
}

func TestSQLStore_RubricRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	saved, err := st.PutRubric(ctx, sampleRubric())
	if err != nil {
		t.Fatalf("put rubric: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected generated id")
	}
	got, err := st.GetRubric(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get rubric: %v", err)
	}
	if !reflect.DeepEqual(got.Items, sampleRubric().Items) {
		t.Fatalf("items round trip mismatch: %+v", got.Items)
	}

	list, err := st.ListRubrics(ctx, rubric.ListOpts{})
	if err != nil {
		t.Fatalf("list rubrics: %v", err)
	}
	if len(list) != 1 || list[0].ID != saved.ID || list[0].Items != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := st.DeleteRubric(ctx, saved.ID); err != nil {
		t.Fatalf("delete rubric: %v", err)
	}
	if _, err := st.GetRubric(ctx, saved.ID); !errors.Is(err, rubric.ErrRubricNotFound) {
		t.Fatalf("expected ErrRubricNotFound, got %v", err)
	}
}

func TestSQLStore_StudentLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rb, err := st.PutRubric(ctx, sampleRubric())
	if err != nil {
		t.Fatalf("put rubric: %v", err)
	}
	rec, err := st.UpsertStudent(ctx, rubric.StudentRecord{RubricID: rb.ID, Name: "Ada", UserID: "u-ada"})
	if err != nil {
		t.Fatalf("upsert student: %v", err)
	}
	if rec.Total != nil || rec.ItemScores != nil {
		t.Fatalf("fresh student should have no scores: %+v", rec)
	}
	if rec.UserID != "u-ada" {
		t.Fatalf("expected account link to round trip, got %q", rec.UserID)
	}

	total := 21
	rec.Total = &total
	rec.ItemScores = []int{21}
	rec.ElementScores = [][]int{{1, 20}}
	if err := st.SaveAssignment(ctx, rec); err != nil {
		t.Fatalf("save assignment: %v", err)
	}
	got, err := st.GetStudent(ctx, rb.ID, rec.ID)
	if err != nil {
		t.Fatalf("get student: %v", err)
	}
	if got.Total == nil || *got.Total != 21 {
		t.Fatalf("expected total 21, got %+v", got.Total)
	}
	if !reflect.DeepEqual(got.ItemScores, []int{21}) || !reflect.DeepEqual(got.ElementScores, [][]int{{1, 20}}) {
		t.Fatalf("scores round trip mismatch: %+v", got)
	}

	// A rubric edit invalidates breakdowns but keeps the entered total.
	if _, err := st.PutRubric(ctx, rb); err != nil {
		t.Fatalf("re-put rubric: %v", err)
	}
	got, err = st.GetStudent(ctx, rb.ID, rec.ID)
	if err != nil {
		t.Fatalf("get student after edit: %v", err)
	}
	if got.ItemScores != nil || got.ElementScores != nil {
		t.Fatalf("expected breakdown cleared after rubric edit: %+v", got)
	}
	if got.Total == nil || *got.Total != 21 {
		t.Fatalf("expected total to survive rubric edit, got %+v", got.Total)
	}

	// Clearing the total clears everything.
	got.Total = nil
	got.ItemScores = nil
	got.ElementScores = nil
	if err := st.SaveAssignment(ctx, got); err != nil {
		t.Fatalf("clear assignment: %v", err)
	}
	got, err = st.GetStudent(ctx, rb.ID, rec.ID)
	if err != nil {
		t.Fatalf("get student after clear: %v", err)
	}
	if got.Total != nil || got.ItemScores != nil || got.ElementScores != nil {
		t.Fatalf("expected cleared record, got %+v", got)
	}

	if err := st.SaveAssignment(ctx, rubric.StudentRecord{ID: "nope", RubricID: rb.ID}); !errors.Is(err, rubric.ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}
