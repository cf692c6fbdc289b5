package http

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rubricast/rubricast/internal/rubric"
)

// GET /rubrics/{rubricID}/export.csv
// One row per student: identity, total, item scores, then element scores in
// rubric order. Unassigned cells are left blank.
func ExportCSVHandler(store rubric.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rubricID := chi.URLParam(r, "rubricID")
		rb, err := store.GetRubric(r.Context(), rubricID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		students, err := store.ListStudents(r.Context(), rubricID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rb.ID+".csv"))

		cw := csv.NewWriter(w)
		_ = cw.Write(exportHeader(rb))
		for _, rec := range students {
			_ = cw.Write(exportRow(rb, rec))
		}
		cw.Flush()
	}
}

func exportHeader(rb rubric.Rubric) []string {
	hdr := []string{"student_id", "name", "total"}
	for i, it := range rb.Items {
		hdr = append(hdr, itemLabel(it, i))
	}
	for i, it := range rb.Items {
		for j, el := range it.Elements {
			label := el.Title
			if label == "" {
				label = "element " + strconv.Itoa(j+1)
			}
			hdr = append(hdr, itemLabel(it, i)+" / "+label)
		}
	}
	return hdr
}

func exportRow(rb rubric.Rubric, rec rubric.StudentRecord) []string {
	row := []string{rec.ID, rec.Name}
	if rec.Total != nil {
		row = append(row, strconv.Itoa(*rec.Total))
	} else {
		row = append(row, "")
	}
	assigned := len(rec.ItemScores) == len(rb.Items)
	for i := range rb.Items {
		if assigned {
			row = append(row, strconv.Itoa(rec.ItemScores[i]))
		} else {
			row = append(row, "")
		}
	}
	for i, it := range rb.Items {
		for j := range it.Elements {
			if assigned && i < len(rec.ElementScores) && j < len(rec.ElementScores[i]) {
				row = append(row, strconv.Itoa(rec.ElementScores[i][j]))
			} else {
				row = append(row, "")
			}
		}
	}
	return row
}

func itemLabel(it rubric.Item, i int) string {
	if it.Title != "" {
		return it.Title
	}
	return "item " + strconv.Itoa(i+1)
}
