// Package apperr defines the error kinds surfaced by the scheduling service.
// Callers match kinds with errors.Is; messages carry the detail.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrDataUnavailable = errors.New("data unavailable")
	ErrSlotConflict    = errors.New("slot conflict")
)

type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.err != nil {
		return []error{e.kind, e.err}
	}
	return []error{e.kind}
}

func NotFound(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func SlotConflict(format string, args ...any) error {
	return &kindError{kind: ErrSlotConflict, msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a storage or transport fault. The cause stays reachable via errors.As.
func Unavailable(cause error, format string, args ...any) error {
	return &kindError{kind: ErrDataUnavailable, msg: fmt.Sprintf(format, args...), err: cause}
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return err.Error()
}
