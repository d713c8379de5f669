// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names. Each is a durable queue bound to the default exchange,
// so the routing key is the queue name.
const (
    TicketIssuedQueue    = "ticket.issued"
    TicketCancelledQueue = "ticket.cancelled"
    TicketScannedQueue   = "ticket.scanned"
)

// TicketIssuedEvent is published once per successful booking.  It lists
// every ticket of the booking so consumers can log or notify without
// querying the primary database.
type TicketIssuedEvent struct {
    EventID   uint64   `json:"event_id"`
    EventName string   `json:"event_name"`
    HolderID  uint64   `json:"holder_id"`
    TicketIDs []string `json:"ticket_ids"`
    Status    string   `json:"status"`
    IssuedAt  string   `json:"issued_at"`
}

// TicketCancelledEvent is published when a ticket moves to cancelled.
// CancelledBy is the holder, the organizer or an admin.
type TicketCancelledEvent struct {
    TicketID    string `json:"ticket_id"`
    EventID     uint64 `json:"event_id"`
    HolderID    uint64 `json:"holder_id"`
    CancelledBy uint64 `json:"cancelled_by"`
    CancelledAt string `json:"cancelled_at"`
}

// TicketScannedEvent is the audit record of a successful redemption.
type TicketScannedEvent struct {
    TicketID  string `json:"ticket_id"`
    EventID   uint64 `json:"event_id"`
    HolderID  uint64 `json:"holder_id"`
    ScannedBy uint64 `json:"scanned_by"`
    ScannedAt string `json:"scanned_at"`
}
