// Package repository defines error types that are reused across the
// event and ticket stores. These sentinel values allow the service
// layer to distinguish storage outcomes from infrastructure failures.
// For example, ErrCapacityExceeded indicates that a conditional
// issuance was refused because the event has too few free slots,
// while ErrEventNotFound signals that the event row does not exist.
package repository

import "errors"

// ErrEventNotFound is returned when no event matches the given ID.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when no ticket matches the given ID
// or validation token.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrCapacityExceeded is returned by IssueIfCapacityAvailable when the
// requested quantity does not fit in the event's remaining capacity.
// Nothing is written when it is returned.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrDuplicateToken is returned when an insert collides with an
// existing validation token. Callers may retry with fresh tokens.
var ErrDuplicateToken = errors.New("duplicate validation token")
