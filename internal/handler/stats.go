package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/service"
)

// StatsHandler serves the organizer dashboard reports.
type StatsHandler struct {
    Stats *service.Stats
}

func NewStatsHandler(s *service.Stats) *StatsHandler {
    if s == nil {
        panic("nil stats passed to NewStatsHandler")
    }
    return &StatsHandler{Stats: s}
}

// EventStats handles GET /v1/organizer/events/:id/stats.
func (h *StatsHandler) EventStats(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    eventID, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    st, err := h.Stats.StatsFor(c.Request().Context(), eventID, p)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "event_id":  st.EventID,
        "capacity":  st.Capacity,
        "available": st.Available,
        "scan_rate": st.ScanRate,
        "counts": echo.Map{
            "pending":   st.Pending,
            "paid":      st.Paid,
            "cancelled": st.Cancelled,
            "used":      st.Used,
        },
    })
}

// Summary handles GET /v1/organizer/stats.
func (h *StatsHandler) Summary(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    sum, err := h.Stats.OrganizerSummary(c.Request().Context(), p)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "total_events":       sum.TotalEvents,
        "total_tickets_sold": sum.TotalTicketsSold,
        "total_revenue":      sum.TotalRevenue.StringFixed(2),
        "tickets_scanned":    sum.TicketsScanned,
    })
}
