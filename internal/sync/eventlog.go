package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Attempt lifecycle event types appended by the review store.
const (
	EventAnswerSaved      = "AnswerSaved"
	EventAttemptFinalized = "AttemptFinalized"
)

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string // natural key: attempt id
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}
