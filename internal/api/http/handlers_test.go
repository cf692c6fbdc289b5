package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	authmw "github.com/rubricast/rubricast/internal/auth/middleware"
	"github.com/rubricast/rubricast/internal/db"
	"github.com/rubricast/rubricast/internal/rbac"
	"github.com/rubricast/rubricast/internal/rubric"
)

/* ---------------- In-memory fake satisfying rubric.Store ---------------- */

type fakeStore struct {
	rubrics  map[string]rubric.Rubric
	students map[string]rubric.StudentRecord // key: rubricID|studentID
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rubrics:  map[string]rubric.Rubric{},
		students: map[string]rubric.StudentRecord{},
	}
}

func skey(rubricID, id string) string { return rubricID + "|" + id }

func (s *fakeStore) PutRubric(_ context.Context, r rubric.Rubric) (rubric.Rubric, error) {
	if r.ID == "" {
		s.seq++
		r.ID = fmt.Sprintf("r-%d", s.seq)
	}
	s.rubrics[r.ID] = r
	// Invalidation rule: scores cleared, totals kept.
	for k, rec := range s.students {
		if rec.RubricID == r.ID {
			rec.ItemScores = nil
			rec.ElementScores = nil
			s.students[k] = rec
		}
	}
	return r, nil
}

func (s *fakeStore) GetRubric(_ context.Context, id string) (rubric.Rubric, error) {
	r, ok := s.rubrics[id]
	if !ok {
		return rubric.Rubric{}, rubric.ErrRubricNotFound
	}
	return r, nil
}

func (s *fakeStore) ListRubrics(_ context.Context, _ rubric.ListOpts) ([]rubric.RubricSummary, error) {
	out := []rubric.RubricSummary{}
	for _, r := range s.rubrics {
		out = append(out, rubric.RubricSummary{ID: r.ID, Title: r.Title, Items: len(r.Items)})
	}
	return out, nil
}

func (s *fakeStore) DeleteRubric(_ context.Context, id string) error {
	if _, ok := s.rubrics[id]; !ok {
		return rubric.ErrRubricNotFound
	}
	delete(s.rubrics, id)
	return nil
}

func (s *fakeStore) UpsertStudent(_ context.Context, rec rubric.StudentRecord) (rubric.StudentRecord, error) {
	if rec.ID == "" {
		s.seq++
		rec.ID = fmt.Sprintf("s-%d", s.seq)
	}
	if prev, ok := s.students[skey(rec.RubricID, rec.ID)]; ok {
		prev.Name = rec.Name
		prev.UserID = rec.UserID
		s.students[skey(rec.RubricID, rec.ID)] = prev
		return prev, nil
	}
	s.students[skey(rec.RubricID, rec.ID)] = rec
	return rec, nil
}

func (s *fakeStore) GetStudent(_ context.Context, rubricID, id string) (rubric.StudentRecord, error) {
	rec, ok := s.students[skey(rubricID, id)]
	if !ok {
		return rubric.StudentRecord{}, rubric.ErrStudentNotFound
	}
	return rec, nil
}

func (s *fakeStore) ListStudents(_ context.Context, rubricID string) ([]rubric.StudentRecord, error) {
	out := []rubric.StudentRecord{}
	for _, rec := range s.students {
		if rec.RubricID == rubricID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveAssignment(_ context.Context, rec rubric.StudentRecord) error {
	k := skey(rec.RubricID, rec.ID)
	if _, ok := s.students[k]; !ok {
		return rubric.ErrStudentNotFound
	}
	s.students[k] = rec
	return nil
}

/* ------------------------------- helpers ------------------------------- */

func newTestRouter(store rubric.Store, maxCombinations int) http.Handler {
	assigner := rubric.NewAssigner(rand.New(rand.NewSource(1)))
	r := chi.NewRouter()
	r.Post("/rubrics", UpsertRubricHandler(store, nil))
	r.Get("/rubrics/{rubricID}/results", ResultsHandler(store, maxCombinations))
	r.Get("/rubrics/{rubricID}/students/{studentID}", GetStudentHandler(store))
	r.Put("/rubrics/{rubricID}/students/{studentID}/score", AssignScoreHandler(store, assigner, nil, maxCombinations))
	return r
}

// asUser attaches the identity JWTMiddleware would have set.
func asUser(req *http.Request, userID, role string) *http.Request {
	ctx := authmw.WithSubject(req.Context(), userID)
	ctx = rbac.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func seedRubric(t *testing.T, st *fakeStore) rubric.Rubric {
	t.Helper()
	rb, err := st.PutRubric(context.Background(), rubric.Rubric{
		ID:    "essay",
		Title: "Essay",
		Items: []rubric.Item{{
			Title: "Structure",
			Elements: []rubric.Element{
				{Values: []int{1, 2}},
				{Values: []int{10, 20}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("seed rubric: %v", err)
	}
	return rb
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

/* -------------------------------- tests -------------------------------- */

func TestUpsertRubric_InvalidValuePosition(t *testing.T) {
	h := newTestRouter(newFakeStore(), 1_000_000)
	body := rubric.Rubric{
		Title: "Bad",
		Items: []rubric.Item{
			{Elements: []rubric.Element{{Values: []int{1}}}},
			{Elements: []rubric.Element{{Values: []int{2, 3, 0}}}},
		},
	}
	w := doJSON(t, h, http.MethodPost, "/rubrics", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var ve rubric.ValueError
	if err := json.Unmarshal(w.Body.Bytes(), &ve); err != nil {
		t.Fatalf("expected structured error body, got %q", w.Body.String())
	}
	if ve.Item != 2 || ve.Element != 1 || ve.Value != 3 {
		t.Fatalf("expected position (2,1,3), got (%d,%d,%d)", ve.Item, ve.Element, ve.Value)
	}
}

func TestUpsertRubric_InvalidatesAssignments(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st)
	total := 21
	st.students[skey(rb.ID, "s1")] = rubric.StudentRecord{
		ID: "s1", RubricID: rb.ID, Name: "Ada",
		Total: &total, ItemScores: []int{21}, ElementScores: [][]int{{1, 20}},
	}

	h := newTestRouter(st, 1_000_000)
	w := doJSON(t, h, http.MethodPost, "/rubrics", rb)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rec := st.students[skey(rb.ID, "s1")]
	if rec.ItemScores != nil || rec.ElementScores != nil {
		t.Fatalf("expected breakdown cleared on rubric edit, got %+v", rec)
	}
	if rec.Total == nil || *rec.Total != 21 {
		t.Fatalf("expected total to survive the edit, got %+v", rec.Total)
	}
}

func TestResults(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st)
	h := newTestRouter(st, 1_000_000)

	req := httptest.NewRequest(http.MethodGet, "/rubrics/"+rb.ID+"/results", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res rubric.Results
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	want := []int{22, 21, 12, 11}
	if len(res.TotalSums) != len(want) {
		t.Fatalf("expected totals %v, got %v", want, res.TotalSums)
	}
	for i, v := range want {
		if res.TotalSums[i] != v {
			t.Fatalf("expected totals %v, got %v", want, res.TotalSums)
		}
	}
}

func TestResults_RejectsOversizedRubric(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st) // 4 combinations
	h := newTestRouter(st, 3)

	req := httptest.NewRequest(http.MethodGet, "/rubrics/"+rb.ID+"/results", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetStudent_StudentSeesOnlyOwnRecord(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st)
	st.students[skey(rb.ID, "s1")] = rubric.StudentRecord{ID: "s1", RubricID: rb.ID, Name: "Ada", UserID: "u-ada"}
	st.students[skey(rb.ID, "s2")] = rubric.StudentRecord{ID: "s2", RubricID: rb.ID, Name: "Ben"}
	h := newTestRouter(st, 1_000_000)

	get := func(studentID, userID, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/rubrics/"+rb.ID+"/students/"+studentID, nil)
		req = asUser(req, userID, role)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := get("s1", "u-ada", "student")
	if w.Code != http.StatusOK {
		t.Fatalf("own record: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rec rubric.StudentRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil || rec.Name != "Ada" {
		t.Fatalf("expected Ada's record, got %q (err=%v)", w.Body.String(), err)
	}
	if w := get("s1", "u-ben", "student"); w.Code != http.StatusForbidden {
		t.Fatalf("someone else's record: expected 403, got %d", w.Code)
	}
	// A record never linked to an account is off-limits to students.
	if w := get("s2", "u-ada", "student"); w.Code != http.StatusForbidden {
		t.Fatalf("unlinked record: expected 403, got %d", w.Code)
	}
	if w := get("s2", "u-teach", "teacher"); w.Code != http.StatusOK {
		t.Fatalf("teacher: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBulkUpsertUsers_EnrollsLinkedStudents(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	st := newFakeStore()
	rb := seedRubric(t, st)
	h := BulkUpsertUsersHandler(dbh, st)

	post := func() map[string]any {
		body := []userRow{{Username: "ada", Password: "pw", Role: "student", Name: "Ada L", RubricID: rb.ID}}
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/users/bulk", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var out map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return out
	}

	out := post()
	if out["inserted"] != float64(1) || out["enrolled"] != float64(1) {
		t.Fatalf("expected 1 inserted and 1 enrolled, got %v", out)
	}
	roster, err := st.ListStudents(ctx, rb.ID)
	if err != nil {
		t.Fatalf("list students: %v", err)
	}
	if len(roster) != 1 || roster[0].Name != "Ada L" || roster[0].UserID == "" {
		t.Fatalf("expected one linked roster entry, got %+v", roster)
	}

	// Re-importing the same sheet must reuse the roster entry, not add one.
	out = post()
	if out["updated"] != float64(1) || out["enrolled"] != float64(1) {
		t.Fatalf("expected 1 updated and 1 enrolled on re-import, got %v", out)
	}
	roster, _ = st.ListStudents(ctx, rb.ID)
	if len(roster) != 1 {
		t.Fatalf("expected roster entry reused on re-import, got %d entries", len(roster))
	}
}

func TestAssignScore_Assigned(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st)
	st.students[skey(rb.ID, "s1")] = rubric.StudentRecord{ID: "s1", RubricID: rb.ID, Name: "Ada"}
	h := newTestRouter(st, 1_000_000)

	w := doJSON(t, h, http.MethodPut, "/rubrics/"+rb.ID+"/students/s1/score", map[string]any{"total": 21})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp assignScoreResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != rubric.StatusAssigned {
		t.Fatalf("expected assigned, got %s", resp.Status)
	}
	if len(resp.Student.ItemScores) != 1 || resp.Student.ItemScores[0] != 21 {
		t.Fatalf("expected item scores [21], got %v", resp.Student.ItemScores)
	}
	// 21 only splits as 1+20.
	if len(resp.Student.ElementScores) != 1 || resp.Student.ElementScores[0][0] != 1 || resp.Student.ElementScores[0][1] != 20 {
		t.Fatalf("expected element scores [[1 20]], got %v", resp.Student.ElementScores)
	}
	// Persisted too.
	stored := st.students[skey(rb.ID, "s1")]
	if stored.Total == nil || *stored.Total != 21 {
		t.Fatalf("expected stored total 21, got %+v", stored.Total)
	}
}

func TestAssignScore_UnreachablePersistsNothing(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st)
	st.students[skey(rb.ID, "s1")] = rubric.StudentRecord{ID: "s1", RubricID: rb.ID, Name: "Ada"}
	h := newTestRouter(st, 1_000_000)

	w := doJSON(t, h, http.MethodPut, "/rubrics/"+rb.ID+"/students/s1/score", map[string]any{"total": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp assignScoreResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != rubric.StatusUnreachable {
		t.Fatalf("expected unreachable, got %s", resp.Status)
	}
	stored := st.students[skey(rb.ID, "s1")]
	if stored.Total != nil || stored.ItemScores != nil {
		t.Fatalf("expected stored record untouched, got %+v", stored)
	}
}

func TestAssignScore_ClearTotal(t *testing.T) {
	st := newFakeStore()
	rb := seedRubric(t, st)
	total := 21
	st.students[skey(rb.ID, "s1")] = rubric.StudentRecord{
		ID: "s1", RubricID: rb.ID, Name: "Ada",
		Total: &total, ItemScores: []int{21}, ElementScores: [][]int{{1, 20}},
	}
	h := newTestRouter(st, 1_000_000)

	w := doJSON(t, h, http.MethodPut, "/rubrics/"+rb.ID+"/students/s1/score", map[string]any{"total": nil})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp assignScoreResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != rubric.StatusCleared {
		t.Fatalf("expected cleared, got %s", resp.Status)
	}
	stored := st.students[skey(rb.ID, "s1")]
	if stored.Total != nil || stored.ItemScores != nil || stored.ElementScores != nil {
		t.Fatalf("expected cleared record, got %+v", stored)
	}
}
