package audit

import (
	"context"
	"database/sql"
	"time"
)

// Entry is one append-only activity-log event. The core writes entries but
// never reads them back.
type Entry struct {
	ActorID     int64
	Action      string
	Description string
	At          time.Time
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Log writes entries to the activity_log table.
type Log struct {
	db *sql.DB
}

// NewLog creates a database-backed recorder.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Record appends one entry.
func (l *Log) Record(ctx context.Context, e Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, title, description, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ActorID, e.Action, e.Description, at)
	return err
}

// Discard is a no-op recorder for tests and tools.
type Discard struct{}

func (Discard) Record(context.Context, Entry) error { return nil }
