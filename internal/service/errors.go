package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a domain failure. All kinds are caller-correctable
// outcomes, not server faults.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotScannable      Kind = "not_scannable"
	KindInvalidInput      Kind = "invalid_input"
)

// Reason explains why a ticket cannot be scanned.
type Reason string

const (
	ReasonWrongStatus    Reason = "wrong_status"
	ReasonInvalidated    Reason = "invalidated"
	ReasonAlreadyScanned Reason = "already_scanned"
)

// Error is the typed failure returned by every service operation.
// Reasons is only populated for KindNotScannable.
type Error struct {
	Kind    Kind
	Msg     string
	Reasons []Reason
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = strings.ReplaceAll(string(e.Kind), "_", " ")
	}
	if len(e.Reasons) == 0 {
		return msg
	}
	rs := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		rs[i] = string(r)
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(rs, ", "))
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message or reasons.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotScannable      = &Error{Kind: KindNotScannable}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

func newError(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// KindOf returns the kind of a domain failure, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonsOf returns the not-scannable reasons carried by err, if any.
func ReasonsOf(err error) []Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reasons
	}
	return nil
}
