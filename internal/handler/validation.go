package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/service"
)

// ValidationHandler exposes ticket checking and scanning to organizers
// and admins.
type ValidationHandler struct {
    Validator *service.Validator
}

func NewValidationHandler(v *service.Validator) *ValidationHandler {
    if v == nil {
        panic("nil validator passed to NewValidationHandler")
    }
    return &ValidationHandler{Validator: v}
}

type validationJSON struct {
    Token        string   `json:"token,omitempty"`
    Valid        bool     `json:"valid"`
    Status       string   `json:"status"`
    TicketID     string   `json:"ticket_id,omitempty"`
    EventID      uint64   `json:"event_id,omitempty"`
    TicketStatus string   `json:"ticket_status,omitempty"`
    Reasons      []string `json:"reasons,omitempty"`
    ScannedAt    *string  `json:"scanned_at,omitempty"`
    ScannedBy    *uint64  `json:"scanned_by,omitempty"`
    Error        string   `json:"error,omitempty"`
    Code         string   `json:"code,omitempty"`
}

func toValidationJSON(r service.Result) validationJSON {
    out := validationJSON{
        Valid:        r.Valid(),
        Status:       string(r.Status),
        TicketID:     r.TicketID,
        EventID:      r.EventID,
        TicketStatus: string(r.TicketStatus),
        ScannedBy:    r.ScannedBy,
    }
    for _, rs := range r.Reasons {
        out.Reasons = append(out.Reasons, string(rs))
    }
    if r.ScannedAt != nil {
        s := r.ScannedAt.UTC().Format(time.RFC3339)
        out.ScannedAt = &s
    }
    return out
}

// Check handles GET /v1/validate-ticket/:token.  It never changes the
// ticket; a ticket that cannot be scanned is reported with valid=false
// and 200, since the check itself succeeded.
func (h *ValidationHandler) Check(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    res, err := h.Validator.Check(c.Request().Context(), c.Param("token"), p)
    if err != nil && !errors.Is(err, service.ErrNotScannable) {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toValidationJSON(res))
}

// Scan handles POST /v1/validate-ticket/:token.  On success the ticket
// is used and the response is {"valid": true, "status": "scanned"}.  A
// ticket that cannot be scanned yields 409 with the reasons.
func (h *ValidationHandler) Scan(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    res, err := h.Validator.Scan(c.Request().Context(), c.Param("token"), p)
    if err != nil {
        if errors.Is(err, service.ErrNotScannable) {
            out := toValidationJSON(res)
            out.Error = err.Error()
            out.Code = string(service.KindNotScannable)
            return c.JSON(http.StatusConflict, out)
        }
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toValidationJSON(res))
}

// Bulk handles POST /v1/bulk-validate with body {"tokens": [...]}.
// Each token is checked independently; nothing is scanned.
func (h *ValidationHandler) Bulk(c echo.Context) error {
    p, err := principalFrom(c)
    if err != nil {
        return writeError(c, err)
    }
    var body struct {
        Tokens []string `json:"tokens"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.Validator.BulkCheck(c.Request().Context(), body.Tokens, p)
    if err != nil {
        return writeError(c, err)
    }
    results := make([]validationJSON, len(res.Results))
    for i, r := range res.Results {
        results[i] = toValidationJSON(r)
        results[i].Token = r.Token
    }
    return c.JSON(http.StatusOK, echo.Map{
        "results":     results,
        "valid_count": res.ValidCount,
        "total":       len(results),
    })
}
