package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/service"
)

// TicketHandler covers booking, the holder's own tickets, cancellation,
// payment confirmation and the organizer's per-event ticket list.
type TicketHandler struct {
    Ledger *service.Ledger
}

func NewTicketHandler(ledger *service.Ledger) *TicketHandler {
    if ledger == nil {
        panic("nil ledger passed to NewTicketHandler")
    }
    return &TicketHandler{Ledger: ledger}
}

type ticketJSON struct {
    TicketID        string  `json:"ticket_id"`
    EventID         uint64  `json:"event_id"`
    HolderID        uint64  `json:"holder_id"`
    ValidationToken string  `json:"validation_token"`
    ScanURL         string  `json:"scan_url"`
    Status          string  `json:"status"`
    IsValid         bool    `json:"is_valid"`
    ScannedAt       *string `json:"scanned_at,omitempty"`
    ScannedBy       *uint64 `json:"scanned_by,omitempty"`
    CreatedAt       string  `json:"created_at"`
}

func toTicketJSON(t model.Ticket) ticketJSON {
    out := ticketJSON{
        TicketID:        t.ID,
        EventID:         t.EventID,
        HolderID:        t.HolderID,
        ValidationToken: t.ValidationToken,
        ScanURL:         t.ScanURL,
        Status:          string(t.Status),
        IsValid:         t.IsValid,
        ScannedBy:       t.ScannedBy,
        CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
    }
    if t.ScannedAt != nil {
        s := t.ScannedAt.UTC().Format(time.RFC3339)
        out.ScannedAt = &s
    }
    return out
}

func toTicketsJSON(ts []model.Ticket) []ticketJSON {
    out := make([]ticketJSON, len(ts))
    for i, t := range ts {
        out[i] = toTicketJSON(t)
    }
    return out
}

// Book handles POST /v1/events/:id/book with body {"quantity": n}.  A
// missing quantity books one ticket.  Returns 201 with the tickets in
// creation order, or 409 when the event does not have n free places.
func (h *TicketHandler) Book(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    eventID, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    body := struct {
        Quantity *int `json:"quantity"`
    }{}
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    qty := 1
    if body.Quantity != nil {
        qty = *body.Quantity
    }
    tickets, err := h.Ledger.Issue(c.Request().Context(), eventID, p, qty)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"tickets": toTicketsJSON(tickets)})
}

// MyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    tickets, err := h.Ledger.ListForHolder(c.Request().Context(), p)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": toTicketsJSON(tickets)})
}

// Cancel handles POST /v1/tickets/:id/cancel.
func (h *TicketHandler) Cancel(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    id := strings.TrimSpace(c.Param("id"))
    if id == "" {
        return badRequest(c, "invalid ticket id")
    }
    t, err := h.Ledger.Cancel(c.Request().Context(), id, p)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toTicketJSON(t))
}

// ConfirmPayment handles POST /v1/tickets/:id/confirm-payment (admin).
func (h *TicketHandler) ConfirmPayment(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    id := strings.TrimSpace(c.Param("id"))
    if id == "" {
        return badRequest(c, "invalid ticket id")
    }
    t, err := h.Ledger.ConfirmPayment(c.Request().Context(), id, p)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toTicketJSON(t))
}

// EventTickets handles GET /v1/organizer/events/:id/tickets.
func (h *TicketHandler) EventTickets(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    eventID, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    tickets, err := h.Ledger.ListForEvent(c.Request().Context(), eventID, p)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"event_id": eventID, "tickets": toTicketsJSON(tickets)})
}
