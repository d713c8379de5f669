package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

var (
	fixedNow  = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	organizer = model.Principal{ID: 10, Role: model.RoleOrganizer}
	otherOrg  = model.Principal{ID: 11, Role: model.RoleOrganizer}
	admin     = model.Principal{ID: 1, Role: model.RoleAdmin}
	superuser = model.Principal{ID: 2, Role: model.RoleUser, IsSuperuser: true}
	alice     = model.Principal{ID: 100, Role: model.RoleUser}
	bob       = model.Principal{ID: 101, Role: model.RoleUser}
)

type fixture struct {
	store     *repository.MemoryStore
	catalog   *Catalog
	ledger    *Ledger
	validator *Validator
	stats     *Stats
}

func newFixture(t *testing.T, opts ...LedgerOption) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewFixed(fixedNow)
	catalog := NewCatalog(store, clk)
	ledger := NewLedger(store, catalog, clk, opts...)
	return &fixture{
		store:     store,
		catalog:   catalog,
		ledger:    ledger,
		validator: NewValidator(ledger, catalog),
		stats:     NewStats(store, store, catalog),
	}
}

func (f *fixture) event(t *testing.T, owner model.Principal, capacity int, price string) model.Event {
	t.Helper()
	ev, err := f.catalog.CreateEvent(context.Background(), owner, CreateEventInput{
		Name:     "Concert",
		Capacity: capacity,
		StartsAt: fixedNow.Add(24 * time.Hour),
		EndsAt:   fixedNow.Add(27 * time.Hour),
		Price:    decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) issue(t *testing.T, ev model.Event, holder model.Principal, qty int) []model.Ticket {
	t.Helper()
	ts, err := f.ledger.Issue(context.Background(), ev.ID, holder, qty)
	require.NoError(t, err)
	require.Len(t, ts, qty)
	return ts
}

// spyNotifier records lifecycle calls.
type spyNotifier struct {
	mock.Mock
}

func (s *spyNotifier) TicketsIssued(_ context.Context, ev model.Event, ts []model.Ticket) {
	s.Called(ev.ID, len(ts))
}

func (s *spyNotifier) TicketCancelled(_ context.Context, t model.Ticket, by model.Principal) {
	s.Called(t.ID, by.ID)
}

func (s *spyNotifier) TicketScanned(_ context.Context, t model.Ticket) {
	s.Called(t.ID)
}
