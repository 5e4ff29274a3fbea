// Package apperr defines the error kinds shared by the care-record and
// scheduling services. Domain packages declare their own sentinels with New;
// callers discriminate by kind with errors.Is against the Err* kind values or
// with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAccessDenied
	KindInvalidSchedule
	KindSlotTaken
	KindInvalidTransition
	KindUnauthorized
	KindValidation
	KindConflict
)

var kindNames = map[Kind]string{
	KindInternal:          "internal_error",
	KindNotFound:          "not_found",
	KindAccessDenied:      "access_denied",
	KindInvalidSchedule:   "invalid_schedule",
	KindSlotTaken:         "slot_taken",
	KindInvalidTransition: "invalid_transition",
	KindUnauthorized:      "unauthorized",
	KindValidation:        "validation_error",
	KindConflict:          "conflict",
}

// String returns the stable code used in API responses.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "internal_error"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against a bare kind value (an *Error with no message),
// so errors.Is(err, apperr.ErrNotFound) holds for every not-found sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAccessDenied      = &Error{Kind: KindAccessDenied}
	ErrInvalidSchedule   = &Error{Kind: KindInvalidSchedule}
	ErrSlotTaken         = &Error{Kind: KindSlotTaken}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an error of the given kind that still matches sentinel via errors.Is.
func Newf(sentinel *Error, format string, args ...any) error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: &detail{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}}
}

type detail struct {
	sentinel *Error
	msg      string
}

func (d *detail) Error() string { return d.msg }

func (d *detail) Unwrap() error { return d.sentinel }

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
