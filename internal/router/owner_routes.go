package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterOrganizer registers event management, ticket validation and
// reporting.  The role check only keeps plain users out; ownership of
// the specific event is enforced by the services, so an organizer of
// one event cannot scan or inspect another's tickets.
func RegisterOrganizer(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin),
	)
	g.POST("/events", d.Event.Create)

	scan := passThrough(d.RateLimit)
	g.GET("/validate-ticket/:token", d.Validation.Check, scan)
	g.POST("/validate-ticket/:token", d.Validation.Scan, scan)
	// The scan URL printed on tickets ends with a slash.
	g.GET("/validate-ticket/:token/", d.Validation.Check, scan)
	g.POST("/validate-ticket/:token/", d.Validation.Scan, scan)
	g.POST("/bulk-validate", d.Validation.Bulk, scan)

	cache := passThrough(d.Cache)
	g.GET("/organizer/events", d.Event.List)
	g.GET("/organizer/events/:id/tickets", d.Ticket.EventTickets)
	g.GET("/organizer/events/:id/stats", d.Stats.EventStats, cache)
	g.GET("/organizer/stats", d.Stats.Summary, cache)
}

// RegisterAdmin registers authority-only operations.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/tickets/:id/confirm-payment", d.Ticket.ConfirmPayment)
}
