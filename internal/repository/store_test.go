package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type stores struct {
	events  service.EventStore
	tickets service.TicketStore
}

var (
	_ service.EventStore  = (*repository.MemoryStore)(nil)
	_ service.TicketStore = (*repository.MemoryStore)(nil)
	_ service.EventStore  = (*repository.EventRepo)(nil)
	_ service.TicketStore = (*repository.TicketRepo)(nil)
)

var base = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

// backends returns the memory store and, when TEST_MYSQL_DSN points at
// a scratch database, the MySQL repositories on a freshly emptied schema.
func backends(t *testing.T) map[string]func(t *testing.T) stores {
	out := map[string]func(t *testing.T) stores{
		"memory": func(t *testing.T) stores {
			m := repository.NewMemoryStore()
			return stores{events: m, tickets: m}
		},
	}
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		return out
	}
	out["mysql"] = func(t *testing.T) stores {
		db := openMySQL(t, dsn)
		return stores{events: repository.NewEventRepo(db), tickets: repository.NewTicketRepo(db)}
	}
	return out
}

func openMySQL(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := database.OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	for _, table := range []string{"tickets", "events"} {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return db
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s stores)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) { fn(t, open(t)) })
	}
}

func newEvent(t *testing.T, s stores, organizerID uint64, capacity int) model.Event {
	t.Helper()
	ev, err := s.events.CreateEvent(context.Background(), model.Event{
		OrganizerID: organizerID,
		Name:        "Concert",
		Capacity:    capacity,
		StartsAt:    base.Add(24 * time.Hour),
		EndsAt:      base.Add(27 * time.Hour),
		Price:       decimal.RequireFromString("12.50"),
		CreatedAt:   base,
	})
	require.NoError(t, err)
	require.NotZero(t, ev.ID)
	return ev
}

func newTickets(eventID, holderID uint64, n int, status model.TicketStatus) []model.Ticket {
	out := make([]model.Ticket, n)
	for i := range out {
		token := uuid.NewString()
		out[i] = model.Ticket{
			ID:              uuid.NewString(),
			EventID:         eventID,
			HolderID:        holderID,
			ValidationToken: token,
			ScanURL:         "http://localhost:8080/v1/validate-ticket/" + token + "/",
			Status:          status,
			IsValid:         true,
			CreatedAt:       base.Add(time.Duration(i) * time.Millisecond),
		}
	}
	return out
}

func TestEvents_CreateGetList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		a := newEvent(t, s, 10, 5)
		b := newEvent(t, s, 10, 7)
		newEvent(t, s, 11, 1)

		got, err := s.events.GetEvent(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Name, got.Name)
		assert.Equal(t, 5, got.Capacity)
		assert.True(t, a.Price.Equal(got.Price))
		assert.True(t, a.StartsAt.Equal(got.StartsAt))

		_, err = s.events.GetEvent(ctx, a.ID+b.ID+1000)
		assert.ErrorIs(t, err, repository.ErrEventNotFound)

		list, err := s.events.ListEventsByOrganizer(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, a.ID, list[0].ID)
		assert.Equal(t, b.ID, list[1].ID)

		none, err := s.events.ListEventsByOrganizer(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestIssue_CapacityIsAllOrNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 3)

		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, newTickets(ev.ID, 100, 2, model.TicketPaid)))
		err := s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, newTickets(ev.ID, 101, 2, model.TicketPaid))
		assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

		counts, err := s.tickets.CountTicketsByStatus(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, map[model.TicketStatus]int{model.TicketPaid: 2}, counts)

		err = s.tickets.IssueIfCapacityAvailable(ctx, ev.ID+1000, newTickets(ev.ID+1000, 100, 1, model.TicketPaid))
		assert.ErrorIs(t, err, repository.ErrEventNotFound)
	})
}

func TestIssue_CancelledTicketsFreeCapacity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 1)
		ts := newTickets(ev.ID, 100, 1, model.TicketPending)
		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, ts))

		_, ok, err := s.tickets.CompareAndSwapStatus(ctx, ts[0].ID, model.TicketPending, model.TicketCancelled)
		require.NoError(t, err)
		require.True(t, ok)

		assert.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, newTickets(ev.ID, 101, 1, model.TicketPaid)))
	})
}

func TestIssue_DuplicateTokenRejectsBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 10)
		first := newTickets(ev.ID, 100, 1, model.TicketPaid)
		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, first))

		batch := newTickets(ev.ID, 101, 2, model.TicketPaid)
		batch[1].ValidationToken = first[0].ValidationToken
		err := s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, batch)
		assert.ErrorIs(t, err, repository.ErrDuplicateToken)

		_, err = s.tickets.GetTicket(ctx, batch[0].ID)
		assert.ErrorIs(t, err, repository.ErrTicketNotFound)
	})
}

func TestIssue_ConcurrentBookersNeverOversell(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 7)

		var wg sync.WaitGroup
		var issued atomic.Int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(holder uint64) {
				defer wg.Done()
				err := s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, newTickets(ev.ID, holder, 2, model.TicketPaid))
				if err == nil {
					issued.Add(2)
				}
			}(uint64(100 + i))
		}
		wg.Wait()

		assert.EqualValues(t, 6, issued.Load())
		counts, err := s.tickets.CountTicketsByStatus(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, counts[model.TicketPaid])
	})
}

func TestTickets_LookupsAndListing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 10)
		alice := newTickets(ev.ID, 100, 3, model.TicketPaid)
		bob := newTickets(ev.ID, 101, 1, model.TicketPending)
		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, alice))
		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, bob))

		got, err := s.tickets.GetTicketByToken(ctx, alice[1].ValidationToken)
		require.NoError(t, err)
		assert.Equal(t, alice[1].ID, got.ID)
		assert.Equal(t, alice[1].ScanURL, got.ScanURL)
		assert.Nil(t, got.ScannedAt)
		assert.Nil(t, got.ScannedBy)

		_, err = s.tickets.GetTicketByToken(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrTicketNotFound)

		mine, err := s.tickets.ListTicketsByHolder(ctx, 100)
		require.NoError(t, err)
		require.Len(t, mine, 3)
		assert.Equal(t, alice[2].ID, mine[0].ID, "newest first")

		all, err := s.tickets.ListTicketsByEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestMarkScanned_OnlyOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 10)
		ts := newTickets(ev.ID, 100, 2, model.TicketPaid)
		ts[1].Status = model.TicketPending
		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, ts))

		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(by uint64) {
				defer wg.Done()
				_, ok, err := s.tickets.MarkScanned(ctx, ts[0].ID, base.Add(time.Hour), by)
				if err == nil && ok {
					wins.Add(1)
				}
			}(uint64(10 + i))
		}
		wg.Wait()
		assert.EqualValues(t, 1, wins.Load())

		got, err := s.tickets.GetTicket(ctx, ts[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.TicketUsed, got.Status)
		assert.False(t, got.IsValid)
		require.NotNil(t, got.ScannedAt)
		require.NotNil(t, got.ScannedBy)
		assert.True(t, base.Add(time.Hour).Equal(*got.ScannedAt))

		cur, ok, err := s.tickets.MarkScanned(ctx, ts[1].ID, base, 10)
		require.NoError(t, err)
		assert.False(t, ok, "pending tickets cannot be scanned")
		assert.Equal(t, model.TicketPending, cur.Status)

		_, _, err = s.tickets.MarkScanned(ctx, uuid.NewString(), base, 10)
		assert.ErrorIs(t, err, repository.ErrTicketNotFound)
	})
}

func TestCompareAndSwapStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		ev := newEvent(t, s, 10, 10)
		ts := newTickets(ev.ID, 100, 1, model.TicketPending)
		require.NoError(t, s.tickets.IssueIfCapacityAvailable(ctx, ev.ID, ts))
		id := ts[0].ID

		cur, ok, err := s.tickets.CompareAndSwapStatus(ctx, id, model.TicketPaid, model.TicketCancelled)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, model.TicketPending, cur.Status)

		cur, ok, err = s.tickets.CompareAndSwapStatus(ctx, id, model.TicketPending, model.TicketPaid)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.TicketPaid, cur.Status)

		_, _, err = s.tickets.CompareAndSwapStatus(ctx, id, model.TicketPaid, model.TicketUsed)
		assert.Error(t, err)

		_, _, err = s.tickets.CompareAndSwapStatus(ctx, uuid.NewString(), model.TicketPaid, model.TicketCancelled)
		assert.ErrorIs(t, err, repository.ErrTicketNotFound)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := repository.NewMemoryStore()
	ctx := context.Background()
	ev, err := m.CreateEvent(ctx, model.Event{OrganizerID: 1, Name: "x", Capacity: 1})
	require.NoError(t, err)
	ts := newTickets(ev.ID, 100, 1, model.TicketPaid)
	require.NoError(t, m.IssueIfCapacityAvailable(ctx, ev.ID, ts))
	_, ok, err := m.MarkScanned(ctx, ts[0].ID, base, 7)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := m.GetTicket(ctx, ts[0].ID)
	require.NoError(t, err)
	*got.ScannedBy = 99
	got.Status = model.TicketPaid

	again, err := m.GetTicket(ctx, ts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *again.ScannedBy)
	assert.Equal(t, model.TicketUsed, again.Status)
}

func TestMemoryStore_HonorsContext(t *testing.T) {
	m := repository.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.GetEvent(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	err = m.IssueIfCapacityAvailable(ctx, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = m.MarkScanned(ctx, "x", base, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func ExampleMemoryStore() {
	m := repository.NewMemoryStore()
	ev, _ := m.CreateEvent(context.Background(), model.Event{OrganizerID: 1, Name: "Gig", Capacity: 2})
	err := m.IssueIfCapacityAvailable(context.Background(), ev.ID, newTickets(ev.ID, 5, 3, model.TicketPaid))
	fmt.Println(err)
	// Output: capacity exceeded
}
