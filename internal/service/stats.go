package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventStats is the per-event report shown on the organizer dashboard.
type EventStats struct {
	EventID   uint64
	Capacity  int
	Pending   int
	Paid      int
	Cancelled int
	Used      int
	Available int
	ScanRate  float64
}

// OrganizerSummary aggregates every event owned by one organizer.
type OrganizerSummary struct {
	TotalEvents      int
	TotalTicketsSold int
	TotalRevenue     decimal.Decimal
	TicketsScanned   int
}

// Stats derives read-only reports from ledger state. Nothing is
// cached here; every call recomputes.
type Stats struct {
	events  EventStore
	tickets TicketStore
	catalog *Catalog
}

func NewStats(events EventStore, tickets TicketStore, catalog *Catalog) *Stats {
	return &Stats{events: events, tickets: tickets, catalog: catalog}
}

// StatsFor reports ticket counts for one event the requester manages.
func (s *Stats) StatsFor(ctx context.Context, eventID uint64, requester model.Principal) (EventStats, error) {
	ok, err := s.catalog.CanManage(ctx, eventID, requester)
	if err != nil {
		return EventStats{}, err
	}
	if !ok {
		return EventStats{}, newError(KindForbidden, "not an organizer of this event")
	}
	ev, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return EventStats{}, err
	}
	counts, err := s.tickets.CountTicketsByStatus(ctx, eventID)
	if err != nil {
		return EventStats{}, fmt.Errorf("count tickets: %w", err)
	}
	return computeStats(ev, counts), nil
}

func computeStats(ev model.Event, counts map[model.TicketStatus]int) EventStats {
	st := EventStats{
		EventID:   ev.ID,
		Capacity:  ev.Capacity,
		Pending:   counts[model.TicketPending],
		Paid:      counts[model.TicketPaid],
		Cancelled: counts[model.TicketCancelled],
		Used:      counts[model.TicketUsed],
	}
	st.Available = ev.Capacity - (st.Pending + st.Paid + st.Used)
	st.ScanRate = float64(st.Used) / float64(max(st.Paid, 1))
	return st
}

// OrganizerSummary totals the requester's own events. Authorities get
// the summary of the events they created themselves.
func (s *Stats) OrganizerSummary(ctx context.Context, requester model.Principal) (OrganizerSummary, error) {
	if requester.Role != model.RoleOrganizer && !requester.IsAuthority() {
		return OrganizerSummary{}, newError(KindForbidden, "only organizers have a summary")
	}
	events, err := s.events.ListEventsByOrganizer(ctx, requester.ID)
	if err != nil {
		return OrganizerSummary{}, fmt.Errorf("list organizer events: %w", err)
	}

	sum := OrganizerSummary{TotalEvents: len(events), TotalRevenue: decimal.Zero}
	for _, ev := range events {
		counts, err := s.tickets.CountTicketsByStatus(ctx, ev.ID)
		if err != nil {
			return OrganizerSummary{}, fmt.Errorf("count tickets for event %d: %w", ev.ID, err)
		}
		sold := counts[model.TicketPaid] + counts[model.TicketUsed]
		sum.TotalTicketsSold += sold
		sum.TicketsScanned += counts[model.TicketUsed]
		sum.TotalRevenue = sum.TotalRevenue.Add(ev.Price.Mul(decimal.NewFromInt(int64(sold))))
	}
	return sum, nil
}
