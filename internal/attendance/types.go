package attendance

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used everywhere a Record or Pending
// carries a date.
const DateLayout = "2006-01-02"

// EventType distinguishes the two daily attendance transitions.
type EventType int

const (
	TimeIn EventType = iota + 1
	TimeOut
)

func (t EventType) String() string {
	switch t {
	case TimeIn:
		return "time_in"
	case TimeOut:
		return "time_out"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the event type as its wire string.
func (t EventType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// ParseEventType maps the wire value to an EventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "time_in", "Time In":
		return TimeIn, nil
	case "time_out", "Time Out":
		return TimeOut, nil
	default:
		return 0, fmt.Errorf("invalid attendance type %q", s)
	}
}

// Status is the daily attendance status derived at time-in.
type Status int

const (
	Present Status = iota + 1
	Late
	Absent
)

func (s Status) String() string {
	switch s {
	case Present:
		return "Present"
	case Late:
		return "Late"
	case Absent:
		return "Absent"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its display string.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CaptureMode records how an event entered the system.
type CaptureMode int

const (
	Auto CaptureMode = iota + 1
	Manual
)

func (m CaptureMode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto"
}

// Person is one tracked fire-station member.
type Person struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Rank      string    `json:"rank"`
	StationID int64     `json:"station_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName is the display name with rank.
func (p Person) FullName() string {
	return fmt.Sprintf("%s %s %s", p.Rank, p.FirstName, p.LastName)
}

// Record is the authoritative attendance entry for one person on one
// calendar day. At most one exists per (PersonID, Date); the database
// enforces that with a unique constraint.
type Record struct {
	ID           int64      `json:"id"`
	PersonID     int64      `json:"personnel_id"`
	Date         string     `json:"date"`
	TimeIn       *time.Time `json:"time_in,omitempty"`
	TimeOut      *time.Time `json:"time_out,omitempty"`
	TimeInImage  *string    `json:"time_in_image,omitempty"`
	TimeOutImage *string    `json:"time_out_image,omitempty"`
	Status       Status     `json:"status"`
	Confidence   *float64   `json:"confidence,omitempty"`
	AutoCaptured bool       `json:"is_auto_captured"`
	Approved     bool       `json:"is_approved"`
	ApprovedBy   *int64     `json:"approved_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Duration is the time between time-in and time-out, zero until both exist.
func (r Record) Duration() time.Duration {
	if r.TimeIn == nil || r.TimeOut == nil {
		return 0
	}
	return r.TimeOut.Sub(*r.TimeIn)
}

// Pending is a manual attendance claim awaiting administrative disposition.
// It is created on submission and deleted on approval or rejection, never
// mutated in between.
type Pending struct {
	ID        int64     `json:"id"`
	PersonID  int64     `json:"personnel_id"`
	Date      string    `json:"date"`
	EventType EventType `json:"attendance_type"`
	ImagePath string    `json:"image_path"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}
