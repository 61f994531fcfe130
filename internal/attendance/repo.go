package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Repository implements Store on Postgres. Writes lean on the unique
// (personnel_id, date) index and guarded updates so concurrent admissions
// for the same person and day cannot both succeed.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindPerson returns the person or nil when absent.
func (r *Repository) FindPerson(ctx context.Context, id int64) (*Person, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, rank, station_id, created_at
		FROM personnel WHERE id = $1
	`, id)
	var p Person
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Rank, &p.StationID, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// CreatePerson inserts a new person and returns it with its id.
func (r *Repository) CreatePerson(ctx context.Context, p Person) (Person, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO personnel (first_name, last_name, rank, station_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.FirstName, p.LastName, p.Rank, p.StationID)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Person{}, err
	}
	return p, nil
}

const recordColumns = `id, personnel_id, date::text, time_in, time_out, time_in_image, time_out_image,
	status, confidence, is_auto_captured, is_approved, approved_by, created_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(&rec.ID, &rec.PersonID, &rec.Date, &rec.TimeIn, &rec.TimeOut,
		&rec.TimeInImage, &rec.TimeOutImage, &status, &rec.Confidence,
		&rec.AutoCaptured, &rec.Approved, &rec.ApprovedBy, &rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	rec.Status = parseStatus(status)
	return rec, nil
}

func parseStatus(s string) Status {
	switch s {
	case "Late":
		return Late
	case "Absent":
		return Absent
	default:
		return Present
	}
}

// GetRecord returns the attendance record for (personID, date) or nil.
func (r *Repository) GetRecord(ctx context.Context, personID int64, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE personnel_id = $1 AND date = $2::date
	`, personID, date)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertTimeIn creates the day's record with time-in set. The ON CONFLICT
// guard makes the duplicate check and the insert a single atomic unit;
// a conflicting concurrent insert surfaces as (nil, nil).
func (r *Repository) InsertTimeIn(ctx context.Context, rec Record) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(personnel_id, date, time_in, time_in_image, status, confidence, is_auto_captured, is_approved, approved_by)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (personnel_id, date) DO NOTHING
		RETURNING id, created_at
	`, rec.PersonID, rec.Date, rec.TimeIn, rec.TimeInImage, rec.Status.String(),
		rec.Confidence, rec.AutoCaptured, rec.Approved, rec.ApprovedBy)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// SetTimeOut sets time-out on the record if still unset.
func (r *Repository) SetTimeOut(ctx context.Context, recordID int64, at time.Time, image *string, mode CaptureMode, confidence *float64, approver *int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET time_out = $2,
		    time_out_image = $3,
		    is_auto_captured = is_auto_captured AND $4,
		    confidence = COALESCE($5, confidence),
		    approved_by = COALESCE($6, approved_by)
		WHERE id = $1 AND time_in IS NOT NULL AND time_out IS NULL
	`, recordID, at, image, mode == Auto, confidence, approver)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LastEventAt returns the instant of the person's most recent accepted event.
func (r *Repository) LastEventAt(ctx context.Context, personID int64) (*time.Time, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT MAX(GREATEST(COALESCE(time_in, 'epoch'::timestamptz), COALESCE(time_out, 'epoch'::timestamptz)))
		FROM attendance_records
		WHERE personnel_id = $1
	`, personID)
	var last *time.Time
	if err := row.Scan(&last); err != nil {
		return nil, err
	}
	if last != nil && last.Unix() <= 0 {
		return nil, nil
	}
	return last, nil
}

// ListRecords returns records for history views, newest first.
func (r *Repository) ListRecords(ctx context.Context, personID int64, dateFrom, dateTo string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE 1=1`
	args := []any{}
	if personID != 0 {
		args = append(args, personID)
		query += ` AND personnel_id = $1`
	}
	if dateFrom != "" {
		args = append(args, dateFrom)
		query += ` AND date >= $` + strconv.Itoa(len(args)) + `::date`
	}
	if dateTo != "" {
		args = append(args, dateTo)
		query += ` AND date <= $` + strconv.Itoa(len(args)) + `::date`
	}
	query += ` ORDER BY date DESC, time_in DESC NULLS LAST LIMIT 500`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CreatePending stores a manual claim.
func (r *Repository) CreatePending(ctx context.Context, p Pending) (Pending, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO pending_attendance (personnel_id, date, attendance_type, image_path, notes)
		VALUES ($1, $2::date, $3, $4, $5)
		RETURNING id, created_at
	`, p.PersonID, p.Date, p.EventType.String(), p.ImagePath, p.Notes)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Pending{}, err
	}
	return p, nil
}

// GetPending returns the claim or nil when absent.
func (r *Repository) GetPending(ctx context.Context, id int64) (*Pending, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, personnel_id, date::text, attendance_type, image_path, notes, created_at
		FROM pending_attendance WHERE id = $1
	`, id)
	p, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func scanPending(row interface{ Scan(...any) error }) (Pending, error) {
	var p Pending
	var eventType string
	if err := row.Scan(&p.ID, &p.PersonID, &p.Date, &eventType, &p.ImagePath, &p.Notes, &p.CreatedAt); err != nil {
		return Pending{}, err
	}
	et, err := ParseEventType(eventType)
	if err != nil {
		return Pending{}, err
	}
	p.EventType = et
	return p, nil
}

// DeletePending removes the claim.
func (r *Repository) DeletePending(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_attendance WHERE id = $1`, id)
	return err
}

// ListPending returns claims awaiting disposition, newest first.
func (r *Repository) ListPending(ctx context.Context, stationID int64) ([]Pending, error) {
	query := `
		SELECT pa.id, pa.personnel_id, pa.date::text, pa.attendance_type, pa.image_path, pa.notes, pa.created_at
		FROM pending_attendance pa`
	args := []any{}
	if stationID != 0 {
		query += `
		JOIN personnel p ON p.id = pa.personnel_id
		WHERE p.station_id = $1`
		args = append(args, stationID)
	}
	query += `
		ORDER BY pa.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Pending
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
