package apperr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of failure categories surfaced to callers.
type Kind int

const (
	Unknown Kind = iota
	NoFaceDetected
	AmbiguousDetection
	LowConfidence
	NotRecognized
	Duplicate
	InvalidTransition
	Cooldown
	PersonNotFound
	PendingNotFound
	StorageFailure
)

// Code returns the numeric wire code for the kind. The ranges follow the
// scheme used by the station clients: 2xxx face, 3xxx attendance,
// 4xxx personnel, 9xxx system.
func (k Kind) Code() int {
	switch k {
	case NoFaceDetected:
		return 2001
	case LowConfidence:
		return 2002
	case AmbiguousDetection:
		return 2003
	case NotRecognized:
		return 2004
	case Duplicate:
		return 3001
	case InvalidTransition:
		return 3002
	case PendingNotFound:
		return 3003
	case Cooldown:
		return 3005
	case PersonNotFound:
		return 4001
	case StorageFailure:
		return 9002
	default:
		return 9999
	}
}

func (k Kind) String() string {
	switch k {
	case NoFaceDetected:
		return "no_face_detected"
	case AmbiguousDetection:
		return "ambiguous_detection"
	case LowConfidence:
		return "low_confidence"
	case NotRecognized:
		return "not_recognized"
	case Duplicate:
		return "duplicate"
	case InvalidTransition:
		return "invalid_transition"
	case Cooldown:
		return "cooldown"
	case PersonNotFound:
		return "person_not_found"
	case PendingNotFound:
		return "pending_not_found"
	case StorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// Error is a typed domain failure. Callers branch on Kind, never on the
// message text.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two domain errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds a domain error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or Unknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
