package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/rubricast/rubricast/internal/auth/middleware"
	"github.com/rubricast/rubricast/internal/rbac"
	"github.com/rubricast/rubricast/internal/rubric"
	syncx "github.com/rubricast/rubricast/internal/sync"
)

// POST /rubrics/{rubricID}/students
func UpsertStudentHandler(store rubric.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		rubricID := chi.URLParam(r, "rubricID")
		if _, err := store.GetRubric(r.Context(), rubricID); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		rec, err := store.UpsertStudent(r.Context(), rubric.StudentRecord{ID: req.ID, RubricID: rubricID, Name: req.Name, UserID: req.UserID})
		if err != nil {
			http.Error(w, "save student: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(rec)
	}
}

// GET /rubrics/{rubricID}/students
func ListStudentsHandler(store rubric.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListStudents(r.Context(), chi.URLParam(r, "rubricID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// GET /rubrics/{rubricID}/students/{studentID}
// Roles without score:view-all only get the record linked to their own
// account; everything else is forbidden, including unlinked records.
func GetStudentHandler(store rubric.Store) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetStudent(r.Context(), chi.URLParam(r, "rubricID"), chi.URLParam(r, "studentID"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rubric.ErrStudentNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		if !checker.Has(rbac.RoleFromContext(r.Context()), "score:view-all") {
			sub := authmw.SubjectFromContext(r.Context())
			if sub == "" || rec.UserID == "" || rec.UserID != sub {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(rec)
	}
}

type assignScoreResp struct {
	Status  rubric.AssignStatus  `json:"status"`
	Student rubric.StudentRecord `json:"student"`
}

// PUT /rubrics/{rubricID}/students/{studentID}/score
// Body: {"total": 42} to set, {"total": null} to clear. Sets the student's
// total and recomputes the breakdown. An unreachable total persists nothing
// and reports status "unreachable" with the record as stored.
func AssignScoreHandler(store rubric.Store, assigner *rubric.Assigner, events *syncx.EventRepo, maxCombinations int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rubricID := chi.URLParam(r, "rubricID")
		studentID := chi.URLParam(r, "studentID")

		var req struct {
			Total *int `json:"total"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		rb, err := store.GetRubric(r.Context(), rubricID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		rec, err := store.GetStudent(r.Context(), rubricID, studentID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rubric.ErrStudentNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		if n := rubric.Combinations(rb); n > maxCombinations {
			http.Error(w, fmt.Sprintf("rubric too large: %d combinations exceed the configured limit of %d", n, maxCombinations),
				http.StatusUnprocessableEntity)
			return
		}
		res, err := rubric.Evaluate(rb)
		if err != nil {
			http.Error(w, "evaluate: "+err.Error(), http.StatusInternalServerError)
			return
		}

		prior := rec
		rec.Total = req.Total
		status, err := assigner.Assign(&rec, res, rb)
		if err != nil {
			http.Error(w, "assign: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if status == rubric.StatusUnreachable {
			_ = json.NewEncoder(w).Encode(assignScoreResp{Status: status, Student: prior})
			return
		}
		if err := store.SaveAssignment(r.Context(), rec); err != nil {
			http.Error(w, "save assignment: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if events != nil {
			typ := syncx.EventScoreAssigned
			if status == rubric.StatusCleared {
				typ = syncx.EventScoreCleared
			}
			data, _ := json.Marshal(rec)
			_ = events.Append(r.Context(), syncx.Event{Type: typ, Key: studentID, DataJSON: string(data)})
		}
		_ = json.NewEncoder(w).Encode(assignScoreResp{Status: status, Student: rec})
	}
}
