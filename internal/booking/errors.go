package booking

import (
	"errors"
	"fmt"
)

// Kind classifies booking failures so callers can branch on the category
// without parsing messages.
type Kind string

const (
	KindCalendarNotFound Kind = "CALENDAR_NOT_FOUND"
	KindProviderMismatch Kind = "PROVIDER_MISMATCH"
	KindOutsideHours     Kind = "OUTSIDE_HOURS"
	KindSlotConflict     Kind = "SLOT_CONFLICT"
	KindAPIError         Kind = "API_ERROR"
	KindUnknown          Kind = "UNKNOWN_ERROR"
)

// Error is a typed booking failure. It wraps an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed error without an underlying cause.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a typed error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a kind and message.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}
