package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterCustomer registers endpoints open to every authenticated user:
// booking, the caller's own tickets and cancellation.  Organizers and
// admins book tickets like anyone else.  Whether the caller may cancel
// a given ticket is decided by the ledger.
func RegisterCustomer(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleOrganizer, model.RoleAdmin),
	)
	g.POST("/events/:id/book", d.Ticket.Book, passThrough(d.RateLimit))
	g.GET("/my-tickets", d.Ticket.MyTickets)
	g.POST("/tickets/:id/cancel", d.Ticket.Cancel)
}

func passThrough(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw != nil {
		return mw
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
