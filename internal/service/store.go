package service

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventStore is the persistence contract the catalog needs.
type EventStore interface {
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	GetEvent(ctx context.Context, id uint64) (model.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error)
}

// TicketStore is the persistence contract of the ledger. Every method
// is atomic with respect to concurrent callers.
type TicketStore interface {
	// IssueIfCapacityAvailable inserts all tickets for eventID, or none
	// of them when capacity minus the event's pending, paid and used
	// tickets is smaller than len(tickets). The check and the insert
	// are one unit of work per event.
	IssueIfCapacityAvailable(ctx context.Context, eventID uint64, tickets []model.Ticket) error

	GetTicket(ctx context.Context, id string) (model.Ticket, error)
	GetTicketByToken(ctx context.Context, token string) (model.Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error)
	ListTicketsByHolder(ctx context.Context, holderID uint64) ([]model.Ticket, error)
	CountTicketsByStatus(ctx context.Context, eventID uint64) (map[model.TicketStatus]int, error)

	// CompareAndSwapStatus moves the ticket from status from to status to
	// only if it is still in from. It returns the current record and
	// whether the swap happened. It never moves a ticket to used.
	CompareAndSwapStatus(ctx context.Context, id string, from, to model.TicketStatus) (model.Ticket, bool, error)

	// MarkScanned redeems the ticket only if it is paid, valid and not
	// yet scanned, setting status, is_valid, scanned_at and scanned_by
	// together. It returns the current record and whether it redeemed.
	MarkScanned(ctx context.Context, id string, at time.Time, by uint64) (model.Ticket, bool, error)
}

// Notifier receives ticket lifecycle events after they are committed.
// Implementations must not block the caller for long; failures are
// logged, never surfaced.
type Notifier interface {
	TicketsIssued(ctx context.Context, ev model.Event, tickets []model.Ticket)
	TicketCancelled(ctx context.Context, t model.Ticket, by model.Principal)
	TicketScanned(ctx context.Context, t model.Ticket)
}

type nopNotifier struct{}

func (nopNotifier) TicketsIssued(context.Context, model.Event, []model.Ticket)    {}
func (nopNotifier) TicketCancelled(context.Context, model.Ticket, model.Principal) {}
func (nopNotifier) TicketScanned(context.Context, model.Ticket)                    {}
