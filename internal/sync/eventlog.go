package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Event types recorded by the gateway.
const (
	EventRubricUpdated = "RubricUpdated" // rubric structure changed; assignments invalidated
	EventRubricDeleted = "RubricDeleted"
	EventScoreAssigned = "ScoreAssigned" // a student's total was (re)decomposed
	EventScoreCleared  = "ScoreCleared"
)

type Event struct {
	Seq       int64 // assigned by the database on append
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	site := e.SiteID
	if site == "" {
		site = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		site, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}
