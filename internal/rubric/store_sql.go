package rubric

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRubricNotFound  = errors.New("rubric not found")
	ErrStudentNotFound = errors.New("student not found")
)

// SQLStore persists rubrics and students over database/sql. Works against
// sqlite (modernc) and postgres (pgx stdlib); both accept $n placeholders.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutRubric(ctx context.Context, r Rubric) (Rubric, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	ij, err := json.Marshal(r.Items)
	if err != nil {
		return Rubric{}, err
	}
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Rubric{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO rubrics (id,title,items_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, items_json=EXCLUDED.items_json, updated_at=EXCLUDED.updated_at`,
		r.ID, r.Title, string(ij), now)
	if err != nil {
		return Rubric{}, err
	}
	// Structural edit: assigned breakdowns are stale, totals survive.
	_, err = tx.ExecContext(ctx,
		`UPDATE students SET item_scores_json=NULL, element_scores_json=NULL WHERE rubric_id=$1`, r.ID)
	if err != nil {
		return Rubric{}, err
	}
	if err := tx.Commit(); err != nil {
		return Rubric{}, err
	}
	return s.GetRubric(ctx, r.ID)
}

func (s *SQLStore) GetRubric(ctx context.Context, id string) (Rubric, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,items_json,created_at,updated_at FROM rubrics WHERE id=$1`, id)
	var r Rubric
	var ijson string
	if err := row.Scan(&r.ID, &r.Title, &ijson, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rubric{}, ErrRubricNotFound
		}
		return Rubric{}, err
	}
	if err := json.Unmarshal([]byte(ijson), &r.Items); err != nil {
		return Rubric{}, err
	}
	return r, nil
}

func (s *SQLStore) ListRubrics(ctx context.Context, opts ListOpts) ([]RubricSummary, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id,title,items_json,updated_at FROM rubrics
		WHERE ($1 = '' OR title LIKE '%' || $1 || '%')
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, q, opts.Q, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RubricSummary{}
	for rows.Next() {
		var sum RubricSummary
		var ijson string
		if err := rows.Scan(&sum.ID, &sum.Title, &ijson, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		var items []Item
		if err := json.Unmarshal([]byte(ijson), &items); err != nil {
			return nil, err
		}
		sum.Items = len(items)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteRubric(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rubrics WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRubricNotFound
	}
	return nil
}

func (s *SQLStore) UpsertStudent(ctx context.Context, rec StudentRecord) (StudentRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO students (id,rubric_id,name,user_id,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, user_id=EXCLUDED.user_id`,
		rec.ID, rec.RubricID, rec.Name, rec.UserID, time.Now().Unix())
	if err != nil {
		return StudentRecord{}, err
	}
	return s.GetStudent(ctx, rec.RubricID, rec.ID)
}

func (s *SQLStore) GetStudent(ctx context.Context, rubricID, id string) (StudentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,rubric_id,name,user_id,total_score,item_scores_json,element_scores_json
		 FROM students WHERE rubric_id=$1 AND id=$2`, rubricID, id)
	return scanStudent(row)
}

func (s *SQLStore) ListStudents(ctx context.Context, rubricID string) ([]StudentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,rubric_id,name,user_id,total_score,item_scores_json,element_scores_json
		 FROM students WHERE rubric_id=$1 ORDER BY name, id`, rubricID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StudentRecord{}
	for rows.Next() {
		rec, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveAssignment(ctx context.Context, rec StudentRecord) error {
	var total sql.NullInt64
	var itemsJSON, elemsJSON sql.NullString
	if rec.Total != nil {
		total = sql.NullInt64{Int64: int64(*rec.Total), Valid: true}
		ib, err := json.Marshal(rec.ItemScores)
		if err != nil {
			return err
		}
		eb, err := json.Marshal(rec.ElementScores)
		if err != nil {
			return err
		}
		itemsJSON = sql.NullString{String: string(ib), Valid: true}
		elemsJSON = sql.NullString{String: string(eb), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE students SET total_score=$1, item_scores_json=$2, element_scores_json=$3
		 WHERE rubric_id=$4 AND id=$5`,
		total, itemsJSON, elemsJSON, rec.RubricID, rec.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanStudent(row rowScanner) (StudentRecord, error) {
	var rec StudentRecord
	var total sql.NullInt64
	var itemsJSON, elemsJSON sql.NullString
	if err := row.Scan(&rec.ID, &rec.RubricID, &rec.Name, &rec.UserID, &total, &itemsJSON, &elemsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentRecord{}, ErrStudentNotFound
		}
		return StudentRecord{}, err
	}
	if total.Valid {
		t := int(total.Int64)
		rec.Total = &t
	}
	if itemsJSON.Valid && itemsJSON.String != "" {
		if err := json.Unmarshal([]byte(itemsJSON.String), &rec.ItemScores); err != nil {
			return StudentRecord{}, err
		}
	}
	if elemsJSON.Valid && elemsJSON.String != "" {
		if err := json.Unmarshal([]byte(elemsJSON.String), &rec.ElementScores); err != nil {
			return StudentRecord{}, err
		}
	}
	return rec, nil
}
