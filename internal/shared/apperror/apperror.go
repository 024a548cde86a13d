// Package apperror defines the error kinds shared by every domain package.
//
// Domain packages declare their own sentinel errors bound to one of the kinds
// below, so callers can match either the precise sentinel or the broad kind:
//
//	errors.Is(err, account.ErrAccountNotFound) // precise
//	errors.Is(err, apperror.ErrNotFound)       // kind
package apperror

import "errors"

// Error kinds
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
)

// Error is a domain error tagged with a kind and an optional cause.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// New returns a sentinel error of the given kind.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// NotFound returns a sentinel NotFound error.
func NotFound(msg string) error { return New(ErrNotFound, msg) }

// InvalidArgument returns a sentinel InvalidArgument error.
func InvalidArgument(msg string) error { return New(ErrInvalidArgument, msg) }

// Conflict returns a sentinel Conflict error.
func Conflict(msg string) error { return New(ErrConflict, msg) }

// Unavailable wraps a transient infrastructure failure.
func Unavailable(msg string, cause error) error {
	return &Error{Kind: ErrUnavailable, Msg: msg, Cause: cause}
}

// KindOf reports which kind err belongs to, or nil if it has none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidArgument, ErrConflict, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
