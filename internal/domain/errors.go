package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the core returns to its callers.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation"
	KindAuthorization        ErrorKind = "authorization"
	KindState                ErrorKind = "state"
	KindTooEarly             ErrorKind = "too_early"
	KindCapacity             ErrorKind = "capacity"
	KindDuplicateParticipant ErrorKind = "duplicate_participant"
	KindInsufficientFunds    ErrorKind = "insufficient_funds"
	KindConcurrency          ErrorKind = "concurrency"
	KindNotFound             ErrorKind = "not_found"
	KindDuplicateWinner      ErrorKind = "duplicate_winner"
	KindStaleCalculation     ErrorKind = "stale_calculation"
)

// Error is a business error with a kind and a message meant for the end user.
type Error struct {
	Kind    ErrorKind
	Message string
	// MinutesRemaining is set only for KindTooEarly.
	MinutesRemaining int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels, one per kind. Compare with errors.Is.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAuthorization        = &Error{Kind: KindAuthorization}
	ErrState                = &Error{Kind: KindState}
	ErrTooEarly             = &Error{Kind: KindTooEarly}
	ErrCapacity             = &Error{Kind: KindCapacity}
	ErrDuplicateParticipant = &Error{Kind: KindDuplicateParticipant}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds}
	ErrConcurrency          = &Error{Kind: KindConcurrency}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrDuplicateWinner      = &Error{Kind: KindDuplicateWinner}
	ErrStaleCalculation     = &Error{Kind: KindStaleCalculation}
)

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TooEarly reports a start attempt before the start window opens.
func TooEarly(minutes int) *Error {
	return &Error{
		Kind:             KindTooEarly,
		Message:          fmt.Sprintf("Tournament can only be started in %d minutes", minutes),
		MinutesRemaining: minutes,
	}
}

// KindOf returns the kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
