package model

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
    TicketPending   TicketStatus = "pending"
    TicketPaid      TicketStatus = "paid"
    TicketCancelled TicketStatus = "cancelled"
    TicketUsed      TicketStatus = "used"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
    switch s {
    case TicketPending, TicketPaid, TicketCancelled, TicketUsed:
        return true
    }
    return false
}

// Terminal reports whether no transition may leave s.
func (s TicketStatus) Terminal() bool {
    return s == TicketCancelled || s == TicketUsed
}

// HoldsCapacity reports whether a ticket in status s occupies one
// of the event's capacity slots.  Only cancelled tickets release it.
func (s TicketStatus) HoldsCapacity() bool {
    return s == TicketPending || s == TicketPaid || s == TicketUsed
}

// Ticket is a single admission to an event.  The validation token
// is the credential printed into the ticket's scannable code; it is
// assigned once at issuance and never changes.  ScannedAt and
// ScannedBy are set together by exactly one successful scan.
//
// Fields:
//  ID              – primary key (UUID string).
//  EventID         – event the ticket admits to.
//  HolderID        – user that booked the ticket.
//  ValidationToken – unguessable, URL-safe credential (unique).
//  ScanURL         – validation URL derived from the token at issuance.
//  Status          – pending, paid, cancelled or used.
//  IsValid         – false once the ticket has been redeemed.
//  ScannedAt       – redemption time (nil until scanned).
//  ScannedBy       – principal that redeemed the ticket (nil until scanned).
//  CreatedAt       – issuance timestamp.
type Ticket struct {
    ID              string       // tickets.id
    EventID         uint64       // tickets.event_id
    HolderID        uint64       // tickets.holder_id
    ValidationToken string       // tickets.validation_token
    ScanURL         string       // tickets.scan_url
    Status          TicketStatus // tickets.status
    IsValid         bool         // tickets.is_valid
    ScannedAt       *time.Time   // tickets.scanned_at (nullable)
    ScannedBy       *uint64      // tickets.scanned_by (nullable)
    CreatedAt       time.Time    // tickets.created_at
}
