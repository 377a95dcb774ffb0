// Error kinds for the rowstore engine.
//
// Every failure surfaced across package boundaries carries a Kind so
// callers can branch on category (is this a config mistake, a transient
// I/O failure, or a "no such row") without string-matching messages.
package rowstore

import (
	"errors"
	"fmt"
)

// Kind categorises an Error.
type Kind int

const (
	_ Kind = iota
	SchemaError
	IoError
	ParseError
	ValueError
	NoSources
	StateError
	NotFound
)

func (k Kind) String() string {
	switch k {
	case SchemaError:
		return "schema error"
	case IoError:
		return "io error"
	case ParseError:
		return "parse error"
	case ValueError:
		return "value error"
	case NoSources:
		return "no sources"
	case StateError:
		return "state error"
	case NotFound:
		return "not found"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by this package. Op names
// the failing operation (e.g. "loader.load", "blob.append") so a wrapped
// chain reads like a stack trace without needing one.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, letting
// callers write errors.Is(err, rowstore.NotFound) ... except Kind is
// not an error. Use Is(err, Kind) below instead; this method exists so
// *Error participates correctly in errors.Is chains for wrapped causes.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return &Error{Kind: kind, Op: op}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for common end states, mirrored from the teacher's
// sentinel style (folio's errors.go) but categorised via Kind above.
var (
	// ErrEmpty is returned by an iterator positioned past its last row.
	ErrEmpty = wrap(NotFound, "iterator", errors.New("no such row"))

	// ErrAlreadyLoading is returned when Loader.Load is called while a
	// rebuild is already in progress; rebuilds never queue (spec §7).
	ErrAlreadyLoading = wrap(StateError, "container.reload", errors.New("rebuild already in progress"))

	// ErrMapped is returned by write operations on a mapped blob file.
	ErrMapped = wrap(StateError, "blob", errors.New("file is mapped read-only"))

	// ErrNotMapped reports a missing mapping. No operation in this
	// package returns it: every Blob read works mapped or unmapped.
	ErrNotMapped = wrap(StateError, "blob", errors.New("file is not mapped"))
)
