package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"firewatch/internal/apperr"
	"firewatch/internal/audit"
)

// Workflow handles manual attendance claims: operators submit them, an
// administrator approves or rejects them. A claim only touches the
// authoritative record through Approve, which routes it through the
// admission engine with all the usual rules applied.
type Workflow struct {
	store  Store
	engine *Engine
	audit  audit.Recorder

	now func() time.Time
}

// NewWorkflow wires the approval workflow.
func NewWorkflow(store Store, engine *Engine, recorder audit.Recorder) *Workflow {
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &Workflow{store: store, engine: engine, audit: recorder, now: time.Now}
}

// Submit files a manual claim for today. It succeeds whenever the person
// exists and an image is attached; duplicate checking is deliberately
// deferred to approval time so the administrator sees and adjudicates even
// duplicate-looking claims.
func (w *Workflow) Submit(ctx context.Context, personID int64, eventType EventType, imagePath, notes string) (Pending, error) {
	if imagePath == "" {
		return Pending{}, apperr.New(apperr.StorageFailure, "claim image required")
	}
	person, err := w.store.FindPerson(ctx, personID)
	if err != nil {
		return Pending{}, apperr.Wrap(apperr.StorageFailure, "person lookup failed", err)
	}
	if person == nil {
		return Pending{}, apperr.New(apperr.PersonNotFound, "personnel not found")
	}

	p := Pending{
		PersonID:  personID,
		Date:      w.now().Format(DateLayout),
		EventType: eventType,
		ImagePath: imagePath,
		Notes:     notes,
	}
	created, err := w.store.CreatePending(ctx, p)
	if err != nil {
		return Pending{}, apperr.Wrap(apperr.StorageFailure, "pending insert failed", err)
	}
	return created, nil
}

// Approve finalizes a claim through the admission engine. If the engine
// rejects (duplicate, invalid transition), the claim stays intact so the
// administrator can retry or reject it; only a successful admission deletes
// the claim.
func (w *Workflow) Approve(ctx context.Context, pendingID, approverID int64) (*Record, error) {
	p, err := w.store.GetPending(ctx, pendingID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "pending lookup failed", err)
	}
	if p == nil {
		return nil, apperr.New(apperr.PendingNotFound, "pending attendance not found")
	}

	ev := Event{
		PersonID:   p.PersonID,
		At:         p.CreatedAt,
		Date:       p.Date,
		Mode:       Manual,
		ImagePath:  &p.ImagePath,
		Approved:   true,
		ApprovedBy: &approverID,
	}

	var rec *Record
	switch p.EventType {
	case TimeOut:
		rec, err = w.engine.RecordTimeOut(ctx, ev)
	default:
		rec, err = w.engine.RecordTimeIn(ctx, ev)
	}
	if err != nil {
		return nil, err
	}

	if err := w.store.DeletePending(ctx, pendingID); err != nil {
		// The record is already admitted; a stale claim is recoverable
		// by the administrator, a lost record is not.
		log.Printf("approval: delete pending %d failed: %v", pendingID, err)
	}

	w.logActivity(ctx, approverID, "Approve Attendance",
		fmt.Sprintf("Approved %s for personnel %d on %s", p.EventType, p.PersonID, p.Date))
	return rec, nil
}

// Reject discards a claim without touching any attendance record.
func (w *Workflow) Reject(ctx context.Context, pendingID, approverID int64) error {
	p, err := w.store.GetPending(ctx, pendingID)
	if err != nil {
		return apperr.Wrap(apperr.StorageFailure, "pending lookup failed", err)
	}
	if p == nil {
		return apperr.New(apperr.PendingNotFound, "pending attendance not found")
	}
	if err := w.store.DeletePending(ctx, pendingID); err != nil {
		return apperr.Wrap(apperr.StorageFailure, "pending delete failed", err)
	}

	w.logActivity(ctx, approverID, "Reject Attendance",
		fmt.Sprintf("Rejected %s for personnel %d on %s", p.EventType, p.PersonID, p.Date))
	return nil
}

func (w *Workflow) logActivity(ctx context.Context, actorID int64, action, description string) {
	err := w.audit.Record(ctx, audit.Entry{ActorID: actorID, Action: action, Description: description, At: w.now()})
	if err != nil {
		log.Printf("audit: %s failed: %v", action, err)
	}
}
