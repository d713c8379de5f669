package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestIssue_CreatesTicketsWithTokensAndScanURL(t *testing.T) {
	f := newFixture(t, WithScanBaseURL("https://tickets.example.com/"))
	ev := f.event(t, organizer, 5, "10.00")

	ts := f.issue(t, ev, alice, 3)
	for _, tk := range ts {
		assert.Equal(t, ev.ID, tk.EventID)
		assert.Equal(t, alice.ID, tk.HolderID)
		assert.Equal(t, model.TicketPaid, tk.Status)
		assert.True(t, tk.IsValid)
		assert.Nil(t, tk.ScannedAt)
		assert.Nil(t, tk.ScannedBy)
		assert.Equal(t, fixedNow, tk.CreatedAt)

		u, err := uuid.Parse(tk.ValidationToken)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), u.Version())
		assert.Equal(t, "https://tickets.example.com/v1/validate-ticket/"+tk.ValidationToken+"/", tk.ScanURL)
	}

	stored, err := f.store.GetTicket(context.Background(), ts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ts[0], stored)
}

func TestIssue_InitialStatusPolicy(t *testing.T) {
	f := newFixture(t, WithInitialStatus(model.TicketPending))
	ev := f.event(t, organizer, 5, "10.00")
	ts := f.issue(t, ev, alice, 1)
	assert.Equal(t, model.TicketPending, ts[0].Status)

	// Statuses other than pending and paid are ignored.
	f = newFixture(t, WithInitialStatus(model.TicketUsed))
	ev = f.event(t, organizer, 5, "10.00")
	ts = f.issue(t, ev, alice, 1)
	assert.Equal(t, model.TicketPaid, ts[0].Status)
}

func TestIssue_RejectsBadQuantity(t *testing.T) {
	f := newFixture(t, WithMaxPerBooking(4))
	ev := f.event(t, organizer, 100, "10.00")

	for _, q := range []int{0, -1, 5} {
		_, err := f.ledger.Issue(context.Background(), ev.ID, alice, q)
		assert.ErrorIs(t, err, ErrInvalidInput, "quantity %d", q)
	}
}

func TestIssue_LargeBookingWithoutCap(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 100, "10.00")

	ts := f.issue(t, ev, alice, 20)
	assert.Len(t, ts, 20)
	left, err := f.ledger.Remaining(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 80, left)

	_, err = f.ledger.Issue(context.Background(), ev.ID, alice, 81)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestLedgerMetrics_UseBoundedLabels(t *testing.T) {
	issued := metrics.TicketsIssued.WithLabelValues(string(model.TicketPending))
	cancelled := metrics.TicketsCancelled.WithLabelValues(string(model.TicketPending))
	issuedBefore, cancelledBefore := testutil.ToFloat64(issued), testutil.ToFloat64(cancelled)

	f := newFixture(t, WithInitialStatus(model.TicketPending))
	for i := 0; i < 3; i++ {
		ev := f.event(t, organizer, 5, "10.00")
		ts := f.issue(t, ev, alice, 2)
		_, err := f.ledger.Cancel(context.Background(), ts[0].ID, alice)
		require.NoError(t, err)
	}

	assert.Equal(t, issuedBefore+6, testutil.ToFloat64(issued))
	assert.Equal(t, cancelledBefore+3, testutil.ToFloat64(cancelled))
	// One series per status no matter how many events exist.
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.TicketsIssued), 3)
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.TicketsCancelled), 3)
}

func TestIssue_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Issue(context.Background(), 999, alice, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssue_CapacityExceededIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 3, "10.00")
	f.issue(t, ev, alice, 2)

	_, err := f.ledger.Issue(context.Background(), ev.ID, bob, 2)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	bobs, err := f.ledger.ListForHolder(context.Background(), bob)
	require.NoError(t, err)
	assert.Empty(t, bobs, "no partial issuance")

	f.issue(t, ev, bob, 1)
	_, err = f.ledger.Issue(context.Background(), ev.ID, bob, 1)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestIssue_CancelReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 1, "10.00")
	ts := f.issue(t, ev, alice, 1)

	_, err := f.ledger.Issue(context.Background(), ev.ID, bob, 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = f.ledger.Cancel(context.Background(), ts[0].ID, alice)
	require.NoError(t, err)
	f.issue(t, ev, bob, 1)
}

func TestIssue_ThreeConcurrentBookersForTwoPlaces(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 2, "10.00")

	var ok, refused atomic.Int32
	var g errgroup.Group
	for i := 0; i < 3; i++ {
		holder := model.Principal{ID: uint64(200 + i), Role: model.RoleUser}
		g.Go(func() error {
			_, err := f.ledger.Issue(context.Background(), ev.ID, holder, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrCapacityExceeded):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 2, ok.Load())
	assert.EqualValues(t, 1, refused.Load())
}

func TestIssue_ConcurrentIssuersNeverOversell(t *testing.T) {
	const capacity = 25
	f := newFixture(t)
	ev := f.event(t, organizer, capacity, "10.00")

	var accepted atomic.Int32
	var g errgroup.Group
	for i := 0; i < 60; i++ {
		holder := model.Principal{ID: uint64(1000 + i), Role: model.RoleUser}
		qty := i%capacity + 1
		g.Go(func() error {
			ts, err := f.ledger.Issue(context.Background(), ev.ID, holder, qty)
			if errors.Is(err, ErrCapacityExceeded) {
				return nil
			}
			if err != nil {
				return err
			}
			accepted.Add(int32(len(ts)))
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, int(accepted.Load()), capacity)

	counts, err := f.store.CountTicketsByStatus(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int(accepted.Load()), counts[model.TicketPaid])
}

func TestIssue_TokensArePairwiseDistinct(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 500, "1.00")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		for _, tk := range f.issue(t, ev, alice, 10) {
			require.False(t, seen[tk.ValidationToken], "duplicate token %s", tk.ValidationToken)
			seen[tk.ValidationToken] = true
		}
	}
	assert.Len(t, seen, 500)
}

func TestIssue_NotifiesAfterCommit(t *testing.T) {
	spy := &spyNotifier{}
	f := newFixture(t, WithNotifier(spy))
	ev := f.event(t, organizer, 1, "10.00")
	spy.On("TicketsIssued", ev.ID, 1).Once()

	f.issue(t, ev, alice, 1)
	_, err := f.ledger.Issue(context.Background(), ev.ID, bob, 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	spy.AssertExpectations(t)
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 10, "10.00")
	ts := f.issue(t, ev, alice, 4)
	ctx := context.Background()

	_, err := f.ledger.Cancel(ctx, ts[0].ID, bob)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.ledger.Cancel(ctx, ts[0].ID, otherOrg)
	assert.ErrorIs(t, err, ErrForbidden)

	for i, p := range []model.Principal{alice, organizer, admin, superuser} {
		got, err := f.ledger.Cancel(ctx, ts[i].ID, p)
		require.NoError(t, err, "principal %d", p.ID)
		assert.Equal(t, model.TicketCancelled, got.Status)
	}
}

func TestCancel_TerminalStatesAreRejected(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 10, "10.00")
	ts := f.issue(t, ev, alice, 2)
	ctx := context.Background()

	_, err := f.ledger.Cancel(ctx, ts[0].ID, alice)
	require.NoError(t, err)
	_, err = f.ledger.Cancel(ctx, ts[0].ID, alice)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.validator.Scan(ctx, ts[1].ValidationToken, organizer)
	require.NoError(t, err)
	_, err = f.ledger.Cancel(ctx, ts[1].ID, alice)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	used, err := f.store.GetTicket(ctx, ts[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, used.Status)
	require.NotNil(t, used.ScannedBy)
	assert.Equal(t, organizer.ID, *used.ScannedBy)
}

func TestCancel_UnknownTicket(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Cancel(context.Background(), uuid.NewString(), alice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_ConcurrentCancelsSucceedOnce(t *testing.T) {
	spy := &spyNotifier{}
	f := newFixture(t, WithNotifier(spy))
	ev := f.event(t, organizer, 10, "10.00")
	spy.On("TicketsIssued", ev.ID, 1).Once()
	ts := f.issue(t, ev, alice, 1)
	spy.On("TicketCancelled", ts[0].ID, alice.ID).Once()

	var ok, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.ledger.Cancel(context.Background(), ts[0].ID, alice)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInvalidTransition):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, rejected.Load())
	spy.AssertExpectations(t)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t, WithInitialStatus(model.TicketPending))
	ev := f.event(t, organizer, 10, "10.00")
	ts := f.issue(t, ev, alice, 1)
	ctx := context.Background()

	_, err := f.ledger.ConfirmPayment(ctx, ts[0].ID, organizer)
	assert.ErrorIs(t, err, ErrForbidden)

	// A pending ticket cannot be scanned yet.
	_, err = f.validator.Scan(ctx, ts[0].ValidationToken, organizer)
	require.ErrorIs(t, err, ErrNotScannable)
	assert.Equal(t, []Reason{ReasonWrongStatus}, ReasonsOf(err))

	got, err := f.ledger.ConfirmPayment(ctx, ts[0].ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.TicketPaid, got.Status)

	_, err = f.ledger.ConfirmPayment(ctx, ts[0].ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.validator.Scan(ctx, ts[0].ValidationToken, organizer)
	assert.NoError(t, err)
}

func TestListForEvent_RequiresManage(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 10, "10.00")
	f.issue(t, ev, alice, 2)
	f.issue(t, ev, bob, 1)
	ctx := context.Background()

	_, err := f.ledger.ListForEvent(ctx, ev.ID, otherOrg)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.ledger.ListForEvent(ctx, 999, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	ts, err := f.ledger.ListForEvent(ctx, ev.ID, organizer)
	require.NoError(t, err)
	assert.Len(t, ts, 3)
}

func TestRemaining(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, organizer, 5, "10.00")
	ts := f.issue(t, ev, alice, 3)
	_, err := f.ledger.Cancel(context.Background(), ts[0].ID, alice)
	require.NoError(t, err)

	n, err := f.ledger.Remaining(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestError_MessageCarriesReasons(t *testing.T) {
	err := &Error{Kind: KindNotScannable, Msg: "ticket cannot be scanned", Reasons: []Reason{ReasonWrongStatus, ReasonAlreadyScanned}}
	assert.Equal(t, "ticket cannot be scanned: wrong_status, already_scanned", err.Error())
	assert.True(t, strings.HasPrefix((&Error{Kind: KindNotFound}).Error(), "not found"))
	assert.Equal(t, KindNotScannable, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}
