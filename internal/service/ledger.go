package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

const (
	defaultScanBaseURL = "http://localhost:8080"

	// A ticket can change status at most twice before it is terminal
	// (pending -> paid -> used|cancelled), so a lost swap is retried
	// at most that many times.
	maxSwapAttempts = 3
	maxTokenRetries = 3
)

// Ledger owns ticket records and enforces the capacity invariant.
type Ledger struct {
	tickets       TicketStore
	catalog       *Catalog
	clock         clock.Clock
	notifier      Notifier
	log           *slog.Logger
	initialStatus model.TicketStatus
	maxPerBooking int
	scanBaseURL   string
}

type LedgerOption func(*Ledger)

// WithInitialStatus sets the status new tickets are created in. Only
// pending and paid are accepted; anything else is ignored.
func WithInitialStatus(s model.TicketStatus) LedgerOption {
	return func(l *Ledger) {
		if s == model.TicketPending || s == model.TicketPaid {
			l.initialStatus = s
		}
	}
}

// WithMaxPerBooking caps the quantity of a single booking. Zero, the
// default, leaves bookings bounded by capacity alone.
func WithMaxPerBooking(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxPerBooking = n
		}
	}
}

// WithScanBaseURL sets the origin used to build ticket scan URLs.
func WithScanBaseURL(u string) LedgerOption {
	return func(l *Ledger) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			l.scanBaseURL = u
		}
	}
}

func WithNotifier(n Notifier) LedgerOption {
	return func(l *Ledger) {
		if n != nil {
			l.notifier = n
		}
	}
}

func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func NewLedger(tickets TicketStore, catalog *Catalog, clk clock.Clock, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		tickets:       tickets,
		catalog:       catalog,
		clock:         clk,
		notifier:      nopNotifier{},
		log:           slog.Default(),
		initialStatus: model.TicketPaid,
		scanBaseURL:   defaultScanBaseURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue books quantity tickets for the requester. Either every ticket
// is created or none is.
func (l *Ledger) Issue(ctx context.Context, eventID uint64, requester model.Principal, quantity int) ([]model.Ticket, error) {
	start := time.Now()
	defer func() { metrics.IssueDuration.Observe(time.Since(start).Seconds()) }()

	if quantity < 1 {
		metrics.BookingsRejected.WithLabelValues(string(KindInvalidInput)).Inc()
		return nil, newError(KindInvalidInput, "quantity must be at least 1")
	}
	if l.maxPerBooking > 0 && quantity > l.maxPerBooking {
		metrics.BookingsRejected.WithLabelValues(string(KindInvalidInput)).Inc()
		return nil, newError(KindInvalidInput, fmt.Sprintf("quantity must be between 1 and %d", l.maxPerBooking))
	}
	ev, err := l.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var tickets []model.Ticket
	for attempt := 0; ; attempt++ {
		tickets, err = l.newTickets(ev.ID, requester.ID, quantity)
		if err != nil {
			return nil, err
		}
		err = l.tickets.IssueIfCapacityAvailable(ctx, ev.ID, tickets)
		if errors.Is(err, repository.ErrDuplicateToken) && attempt+1 < maxTokenRetries {
			continue
		}
		break
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExceeded):
			metrics.BookingsRejected.WithLabelValues(string(KindCapacityExceeded)).Inc()
			l.log.InfoContext(ctx, "booking refused", "event_id", ev.ID, "user_id", requester.ID, "quantity", quantity)
			return nil, newError(KindCapacityExceeded, "event does not have enough remaining capacity")
		case errors.Is(err, repository.ErrEventNotFound):
			return nil, newError(KindNotFound, "event not found")
		}
		return nil, fmt.Errorf("issue tickets: %w", err)
	}

	metrics.TicketsIssued.WithLabelValues(string(l.initialStatus)).Add(float64(len(tickets)))
	l.log.InfoContext(ctx, "tickets issued", "event_id", ev.ID, "user_id", requester.ID, "quantity", len(tickets))
	l.notifier.TicketsIssued(ctx, ev, tickets)
	return tickets, nil
}

// newTickets builds the records for one booking. The token and the
// scan URL are fixed here and never recomputed.
func (l *Ledger) newTickets(eventID, holderID uint64, quantity int) ([]model.Ticket, error) {
	now := l.clock.Now()
	out := make([]model.Ticket, 0, quantity)
	for i := 0; i < quantity; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("generate ticket id: %w", err)
		}
		token, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("generate validation token: %w", err)
		}
		out = append(out, model.Ticket{
			ID:              id.String(),
			EventID:         eventID,
			HolderID:        holderID,
			ValidationToken: token.String(),
			ScanURL:         l.scanURL(token.String()),
			Status:          l.initialStatus,
			IsValid:         true,
			CreatedAt:       now,
		})
	}
	return out, nil
}

func (l *Ledger) scanURL(token string) string {
	return l.scanBaseURL + "/v1/validate-ticket/" + token + "/"
}

// Cancel moves a ticket to cancelled, releasing its capacity slot.
// The holder, the event organizer and authorities may cancel.
func (l *Ledger) Cancel(ctx context.Context, ticketID string, requester model.Principal) (model.Ticket, error) {
	t, err := l.getTicket(ctx, ticketID)
	if err != nil {
		return model.Ticket{}, err
	}
	if t.HolderID != requester.ID {
		ok, err := l.catalog.CanManage(ctx, t.EventID, requester)
		if err != nil {
			return model.Ticket{}, err
		}
		if !ok {
			return model.Ticket{}, newError(KindForbidden, "not allowed to cancel this ticket")
		}
	}

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		if t.Status.Terminal() {
			break
		}
		cur, swapped, err := l.tickets.CompareAndSwapStatus(ctx, t.ID, t.Status, model.TicketCancelled)
		if err != nil {
			return model.Ticket{}, fmt.Errorf("cancel ticket: %w", err)
		}
		if swapped {
			metrics.TicketsCancelled.WithLabelValues(string(t.Status)).Inc()
			l.log.InfoContext(ctx, "ticket cancelled", "ticket_id", cur.ID, "event_id", cur.EventID, "by", requester.ID)
			l.notifier.TicketCancelled(ctx, cur, requester)
			return cur, nil
		}
		t = cur
	}
	return model.Ticket{}, newError(KindInvalidTransition, fmt.Sprintf("ticket is %s and cannot be cancelled", t.Status))
}

// ConfirmPayment records the externally asserted payment of a pending
// ticket. Only authorities may assert it.
func (l *Ledger) ConfirmPayment(ctx context.Context, ticketID string, requester model.Principal) (model.Ticket, error) {
	if !requester.IsAuthority() {
		return model.Ticket{}, newError(KindForbidden, "only administrators can confirm payment")
	}
	t, err := l.getTicket(ctx, ticketID)
	if err != nil {
		return model.Ticket{}, err
	}
	if t.Status != model.TicketPending {
		return model.Ticket{}, newError(KindInvalidTransition, fmt.Sprintf("ticket is %s, not pending", t.Status))
	}
	cur, swapped, err := l.tickets.CompareAndSwapStatus(ctx, t.ID, model.TicketPending, model.TicketPaid)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("confirm payment: %w", err)
	}
	if !swapped {
		return model.Ticket{}, newError(KindInvalidTransition, fmt.Sprintf("ticket is %s, not pending", cur.Status))
	}
	return cur, nil
}

// markUsed performs the redemption write. Only the validator calls it.
func (l *Ledger) markUsed(ctx context.Context, ticketID string, scanner model.Principal) (model.Ticket, bool, error) {
	t, ok, err := l.tickets.MarkScanned(ctx, ticketID, l.clock.Now(), scanner.ID)
	if err != nil {
		return model.Ticket{}, false, fmt.Errorf("mark ticket used: %w", err)
	}
	return t, ok, nil
}

// ListForHolder returns the requester's own tickets, newest first.
func (l *Ledger) ListForHolder(ctx context.Context, requester model.Principal) ([]model.Ticket, error) {
	ts, err := l.tickets.ListTicketsByHolder(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("list holder tickets: %w", err)
	}
	return ts, nil
}

// ListForEvent returns every ticket of an event the requester manages.
func (l *Ledger) ListForEvent(ctx context.Context, eventID uint64, requester model.Principal) ([]model.Ticket, error) {
	ok, err := l.catalog.CanManage(ctx, eventID, requester)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(KindForbidden, "not an organizer of this event")
	}
	ts, err := l.tickets.ListTicketsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event tickets: %w", err)
	}
	return ts, nil
}

// Remaining returns how many tickets the event can still issue. The
// figure is advisory: Issue re-checks under the event lock.
func (l *Ledger) Remaining(ctx context.Context, ev model.Event) (int, error) {
	counts, err := l.tickets.CountTicketsByStatus(ctx, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	active := 0
	for s, n := range counts {
		if s.HoldsCapacity() {
			active += n
		}
	}
	return max(ev.Capacity-active, 0), nil
}

func (l *Ledger) getTicket(ctx context.Context, id string) (model.Ticket, error) {
	t, err := l.tickets.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return model.Ticket{}, newError(KindNotFound, "ticket not found")
		}
		return model.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}
