package attendance

import (
	"context"
	"time"
)

// Store is the persistence collaborator for the admission engine and the
// approval workflow. Implementations must make the write operations atomic
// at the (person, date) granularity: InsertTimeIn relies on the unique
// (personnel_id, date) constraint and SetTimeOut on a guarded update, so a
// lost race surfaces as a no-op instead of a conflicting double write.
type Store interface {
	// FindPerson returns the person or nil when absent.
	FindPerson(ctx context.Context, id int64) (*Person, error)

	// GetRecord returns the attendance record for (personID, date) or nil.
	GetRecord(ctx context.Context, personID int64, date string) (*Record, error)

	// InsertTimeIn creates the day's record with time-in set. Returns
	// (nil, nil) when a record for (PersonID, Date) already exists.
	InsertTimeIn(ctx context.Context, rec Record) (*Record, error)

	// SetTimeOut sets time-out on an existing record, only if it is still
	// unset. Returns false when the guard failed (already set).
	SetTimeOut(ctx context.Context, recordID int64, at time.Time, image *string, mode CaptureMode, confidence *float64, approver *int64) (bool, error)

	// LastEventAt returns the instant of the person's most recent accepted
	// event of either kind, or nil if none. This is the authoritative
	// cooldown reference, read from the record history rather than any
	// in-memory counter.
	LastEventAt(ctx context.Context, personID int64) (*time.Time, error)

	// ListRecords returns records for history views, newest first.
	// personID 0 and empty date bounds mean unfiltered.
	ListRecords(ctx context.Context, personID int64, dateFrom, dateTo string) ([]Record, error)

	// CreatePending stores a manual claim.
	CreatePending(ctx context.Context, p Pending) (Pending, error)

	// GetPending returns the claim or nil when absent.
	GetPending(ctx context.Context, id int64) (*Pending, error)

	// DeletePending removes the claim.
	DeletePending(ctx context.Context, id int64) error

	// ListPending returns claims awaiting disposition, newest first,
	// optionally scoped to one station (0 means all).
	ListPending(ctx context.Context, stationID int64) ([]Pending, error)
}
