package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is the shared Postgres handle. The pgx stdlib driver is used through
// database/sql so pgvector embedding columns scan with the same standard
// interfaces the attendance repositories use.
type DB struct {
	Client *sql.DB
}

// NewDB opens the pool and verifies connectivity before anything is served.
// The pool is sized for station kiosk traffic: short recognition and
// admission queries, a handful in flight at a time, never a fan-out.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return &DB{Client: db}, db.PingContext(ctx)
}

// Close releases the pool.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
