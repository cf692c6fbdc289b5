package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rubricast/rubricast/internal/rubric"
	syncx "github.com/rubricast/rubricast/internal/sync"
)

// POST /rubrics
// Body is a full rubric; edits replace the stored hierarchy wholesale and
// invalidate every assigned breakdown for it.
func UpsertRubricHandler(store rubric.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rubric.Rubric
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := rubric.ValidateStructure(in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := rubric.Validate(in); err != nil {
			var ve *rubric.ValueError
			if errors.As(err, &ve) {
				writeJSONStatus(w, http.StatusBadRequest, ve)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		saved, err := store.PutRubric(r.Context(), in)
		if err != nil {
			http.Error(w, "save rubric: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if events != nil {
			_ = events.Append(r.Context(), syncx.Event{
				Type:     syncx.EventRubricUpdated,
				Key:      saved.ID,
				DataJSON: `{"items":` + strconv.Itoa(len(saved.Items)) + `}`,
			})
		}
		_ = json.NewEncoder(w).Encode(saved)
	}
}

// GET /rubrics
func ListRubricsHandler(store rubric.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		out, err := store.ListRubrics(r.Context(), rubric.ListOpts{Q: q.Get("q"), Limit: limit, Offset: offset})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// GET /rubrics/{rubricID}
func GetRubricHandler(store rubric.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rb, err := store.GetRubric(r.Context(), chi.URLParam(r, "rubricID"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rubric.ErrRubricNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		_ = json.NewEncoder(w).Encode(rb)
	}
}

// DELETE /rubrics/{rubricID}
func DeleteRubricHandler(store rubric.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "rubricID")
		if err := store.DeleteRubric(r.Context(), id); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rubric.ErrRubricNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		if events != nil {
			_ = events.Append(r.Context(), syncx.Event{Type: syncx.EventRubricDeleted, Key: id, DataJSON: "{}"})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /rubrics/{rubricID}/results
// Results are derived on demand; nothing is cached or persisted.
func ResultsHandler(store rubric.Store, maxCombinations int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rb, err := store.GetRubric(r.Context(), chi.URLParam(r, "rubricID"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rubric.ErrRubricNotFound) {
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
			// Stored rubrics were validated at write time.
			http.Error(w, "evaluate: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
