package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/service"
)

// EventHandler serves the public event lookup and event creation for
// organizers.
type EventHandler struct {
    Catalog *service.Catalog
    Ledger  *service.Ledger
}

func NewEventHandler(catalog *service.Catalog, ledger *service.Ledger) *EventHandler {
    if catalog == nil || ledger == nil {
        panic("nil service passed to NewEventHandler")
    }
    return &EventHandler{Catalog: catalog, Ledger: ledger}
}

type eventJSON struct {
    ID          uint64          `json:"id"`
    OrganizerID uint64          `json:"organizer_id"`
    Name        string          `json:"name"`
    Capacity    int             `json:"capacity"`
    Remaining   *int            `json:"remaining,omitempty"`
    StartsAt    string          `json:"starts_at"`
    EndsAt      string          `json:"ends_at"`
    Price       decimal.Decimal `json:"price"`
    CreatedAt   string          `json:"created_at"`
}

func toEventJSON(e model.Event) eventJSON {
    return eventJSON{
        ID:          e.ID,
        OrganizerID: e.OrganizerID,
        Name:        e.Name,
        Capacity:    e.Capacity,
        StartsAt:    e.StartsAt.UTC().Format(time.RFC3339),
        EndsAt:      e.EndsAt.UTC().Format(time.RFC3339),
        Price:       e.Price,
        CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
    }
}

// Get handles GET /v1/events/:id.  The response includes the number of
// tickets that can still be booked.
func (h *EventHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    ctx := c.Request().Context()
    ev, err := h.Catalog.GetEvent(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    remaining, err := h.Ledger.Remaining(ctx, ev)
    if err != nil {
        return writeError(c, err)
    }
    out := toEventJSON(ev)
    out.Remaining = &remaining
    return c.JSON(http.StatusOK, out)
}

// List handles GET /v1/organizer/events and returns the caller's own
// events with their remaining capacity.
func (h *EventHandler) List(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    ctx := c.Request().Context()
    events, err := h.Catalog.ListForOrganizer(ctx, p)
    if err != nil {
        return writeError(c, err)
    }
    out := make([]eventJSON, 0, len(events))
    for _, ev := range events {
        remaining, err := h.Ledger.Remaining(ctx, ev)
        if err != nil {
            return writeError(c, err)
        }
        item := toEventJSON(ev)
        item.Remaining = &remaining
        out = append(out, item)
    }
    return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// Create handles POST /v1/events.  Body:
//   {"name": "...", "capacity": 100, "starts_at": RFC3339, "ends_at": RFC3339, "price": "25.00"}
// The caller becomes the event's organizer.
func (h *EventHandler) Create(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    var body struct {
        Name     string          `json:"name"`
        Capacity int             `json:"capacity"`
        StartsAt string          `json:"starts_at"`
        EndsAt   string          `json:"ends_at"`
        Price    decimal.Decimal `json:"price"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(body.StartsAt))
    if err != nil {
        return badRequest(c, "starts_at must be RFC3339")
    }
    endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(body.EndsAt))
    if err != nil {
        return badRequest(c, "ends_at must be RFC3339")
    }
    ev, err := h.Catalog.CreateEvent(c.Request().Context(), p, service.CreateEventInput{
        Name:     body.Name,
        Capacity: body.Capacity,
        StartsAt: startsAt,
        EndsAt:   endsAt,
        Price:    body.Price,
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, toEventJSON(ev))
}
