package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Catalog answers ownership questions about events. It is a thin
// read layer over the EventStore plus the single creation path.
type Catalog struct {
	events EventStore
	clock  clock.Clock
}

func NewCatalog(events EventStore, clk clock.Clock) *Catalog {
	return &Catalog{events: events, clock: clk}
}

// CreateEventInput carries the fields an organizer supplies.
type CreateEventInput struct {
	Name     string
	Capacity int
	StartsAt time.Time
	EndsAt   time.Time
	Price    decimal.Decimal
}

// CreateEvent registers a new event owned by the requester.
func (c *Catalog) CreateEvent(ctx context.Context, requester model.Principal, in CreateEventInput) (model.Event, error) {
	if requester.Role != model.RoleOrganizer && !requester.IsAuthority() {
		return model.Event{}, newError(KindForbidden, "only organizers can create events")
	}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return model.Event{}, newError(KindInvalidInput, "name is required")
	case in.Capacity <= 0:
		return model.Event{}, newError(KindInvalidInput, "capacity must be positive")
	case in.StartsAt.IsZero() || in.EndsAt.IsZero():
		return model.Event{}, newError(KindInvalidInput, "starts_at and ends_at are required")
	case in.EndsAt.Before(in.StartsAt):
		return model.Event{}, newError(KindInvalidInput, "ends_at must not be before starts_at")
	case in.Price.IsNegative():
		return model.Event{}, newError(KindInvalidInput, "price must not be negative")
	}

	ev, err := c.events.CreateEvent(ctx, model.Event{
		OrganizerID: requester.ID,
		Name:        name,
		Capacity:    in.Capacity,
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		Price:       in.Price,
		CreatedAt:   c.clock.Now(),
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	return ev, nil
}

// GetEvent returns the event or ErrNotFound.
func (c *Catalog) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	ev, err := c.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return model.Event{}, newError(KindNotFound, "event not found")
		}
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ListForOrganizer returns the events the requester organizes ordered
// by start time. Authorities get their own events, not everyone's.
func (c *Catalog) ListForOrganizer(ctx context.Context, requester model.Principal) ([]model.Event, error) {
	if requester.Role != model.RoleOrganizer && !requester.IsAuthority() {
		return nil, newError(KindForbidden, "only organizers have events")
	}
	events, err := c.events.ListEventsByOrganizer(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	return events, nil
}

// OwnerOf returns the organizer that owns the event.
func (c *Catalog) OwnerOf(ctx context.Context, eventID uint64) (uint64, error) {
	ev, err := c.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return ev.OrganizerID, nil
}

// CanManage reports whether p owns the event or is an authority.
func (c *Catalog) CanManage(ctx context.Context, eventID uint64, p model.Principal) (bool, error) {
	if p.IsAuthority() {
		// Still resolve the event so unknown ids surface as NotFound.
		if _, err := c.GetEvent(ctx, eventID); err != nil {
			return false, err
		}
		return true, nil
	}
	owner, err := c.OwnerOf(ctx, eventID)
	if err != nil {
		return false, err
	}
	return owner == p.ID, nil
}
