package attendance

import (
	"context"
	"time"

	"firewatch/internal/apperr"
)

// Event is one admission attempt handed to the Engine.
type Event struct {
	PersonID   int64
	At         time.Time // event instant; Date defaults to its calendar day
	Date       string    // override for approvals finalized after the claimed day
	Mode       CaptureMode
	Confidence *float64
	ImagePath  *string
	Approved   bool
	ApprovedBy *int64
}

func (ev Event) date() string {
	if ev.Date != "" {
		return ev.Date
	}
	return ev.At.Format(DateLayout)
}

// Engine is the attendance admission state machine. Per (person, date) the
// states are: no record, time-in recorded, time-out recorded (terminal for
// the day). All decisions go through the Store, which is the single source
// of truth; the engine keeps no mutable state of its own.
type Engine struct {
	store    Store
	cooldown time.Duration

	workStartHour int
	workStartMin  int
	grace         time.Duration

	now func() time.Time
}

// NewEngine builds an engine with the given admission policy.
func NewEngine(store Store, cooldown time.Duration, workStartHour, workStartMin int, grace time.Duration) *Engine {
	return &Engine{
		store:         store,
		cooldown:      cooldown,
		workStartHour: workStartHour,
		workStartMin:  workStartMin,
		grace:         grace,
		now:           time.Now,
	}
}

// CheckCooldown rejects an auto-capture that arrives too soon after the
// person's last accepted event of either kind. The reference timestamp comes
// from the record history, so the check holds across process instances.
// Cooldown is a soft, expected condition: the same face showing up in
// consecutive camera frames.
func (e *Engine) CheckCooldown(ctx context.Context, personID int64) error {
	if e.cooldown <= 0 {
		return nil
	}
	last, err := e.store.LastEventAt(ctx, personID)
	if err != nil {
		return apperr.Wrap(apperr.StorageFailure, "cooldown lookup failed", err)
	}
	if last != nil && e.now().Sub(*last) < e.cooldown {
		return apperr.New(apperr.Cooldown, "event within cooldown window")
	}
	return nil
}

// RecordTimeIn admits a time-in event. Allowed only when no record exists
// for the day; an existing record means the time-in is immutable and the
// attempt fails with Duplicate, never an overwrite.
func (e *Engine) RecordTimeIn(ctx context.Context, ev Event) (*Record, error) {
	person, err := e.store.FindPerson(ctx, ev.PersonID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "person lookup failed", err)
	}
	if person == nil {
		return nil, apperr.New(apperr.PersonNotFound, "personnel not found")
	}

	if ev.Mode == Auto {
		if err := e.CheckCooldown(ctx, ev.PersonID); err != nil {
			return nil, err
		}
	}

	at := ev.At
	if at.IsZero() {
		at = e.now()
	}

	rec := Record{
		PersonID:     ev.PersonID,
		Date:         ev.date(),
		TimeIn:       &at,
		TimeInImage:  ev.ImagePath,
		Status:       e.statusFor(at),
		Confidence:   ev.Confidence,
		AutoCaptured: ev.Mode == Auto,
		Approved:     ev.Mode == Auto || ev.Approved,
		ApprovedBy:   ev.ApprovedBy,
	}

	inserted, err := e.store.InsertTimeIn(ctx, rec)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "attendance insert failed", err)
	}
	if inserted == nil {
		return nil, apperr.New(apperr.Duplicate, "time-in already recorded for this date")
	}
	return inserted, nil
}

// RecordTimeOut admits a time-out event. Requires an existing record with
// time-in set and time-out unset.
func (e *Engine) RecordTimeOut(ctx context.Context, ev Event) (*Record, error) {
	person, err := e.store.FindPerson(ctx, ev.PersonID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "person lookup failed", err)
	}
	if person == nil {
		return nil, apperr.New(apperr.PersonNotFound, "personnel not found")
	}

	if ev.Mode == Auto {
		if err := e.CheckCooldown(ctx, ev.PersonID); err != nil {
			return nil, err
		}
	}

	rec, err := e.store.GetRecord(ctx, ev.PersonID, ev.date())
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "attendance lookup failed", err)
	}
	if rec == nil || rec.TimeIn == nil {
		return nil, apperr.New(apperr.InvalidTransition, "no time-in recorded for this date")
	}
	if rec.TimeOut != nil {
		return nil, apperr.New(apperr.Duplicate, "time-out already recorded for this date")
	}

	at := ev.At
	if at.IsZero() {
		at = e.now()
	}

	updated, err := e.store.SetTimeOut(ctx, rec.ID, at, ev.ImagePath, ev.Mode, ev.Confidence, ev.ApprovedBy)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "attendance update failed", err)
	}
	if !updated {
		// Lost a race with a concurrent admission for the same day.
		return nil, apperr.New(apperr.Duplicate, "time-out already recorded for this date")
	}

	rec.TimeOut = &at
	rec.TimeOutImage = ev.ImagePath
	if ev.Mode == Manual {
		rec.AutoCaptured = false
	}
	if ev.Confidence != nil {
		rec.Confidence = ev.Confidence
	}
	if ev.ApprovedBy != nil {
		rec.ApprovedBy = ev.ApprovedBy
	}
	return rec, nil
}

// NextEvent reports which transition the person's day is open for:
// time-in when no record exists, time-out when only time-in is set, and a
// Duplicate error once the day is complete.
func (e *Engine) NextEvent(ctx context.Context, personID int64, date string) (EventType, error) {
	rec, err := e.store.GetRecord(ctx, personID, date)
	if err != nil {
		return 0, apperr.Wrap(apperr.StorageFailure, "attendance lookup failed", err)
	}
	switch {
	case rec == nil || rec.TimeIn == nil:
		return TimeIn, nil
	case rec.TimeOut == nil:
		return TimeOut, nil
	default:
		return 0, apperr.New(apperr.Duplicate, "attendance already complete for this date")
	}
}

// statusFor derives Present or Late from the configured work start plus
// grace period on the event's own day.
func (e *Engine) statusFor(at time.Time) Status {
	cutoff := time.Date(at.Year(), at.Month(), at.Day(), e.workStartHour, e.workStartMin, 0, 0, at.Location()).Add(e.grace)
	if at.After(cutoff) {
		return Late
	}
	return Present
}
