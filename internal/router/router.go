package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-ticketing/internal/handler"
)

// Deps carries everything the route table needs.  RateLimit guards the
// write-heavy booking and scanning routes; Cache fronts the organizer
// reports.  Either may be a pass-through middleware.
type Deps struct {
	JWTSecret  string
	Event      *handler.EventHandler
	Ticket     *handler.TicketHandler
	Validation *handler.ValidationHandler
	Stats      *handler.StatsHandler
	Ready      echo.HandlerFunc
	RateLimit  echo.MiddlewareFunc
	Cache      echo.MiddlewareFunc
}

// RegisterRoutes registers the whole API on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	RegisterPublic(e, d)
	RegisterCustomer(e, d)
	RegisterOrganizer(e, d)
	RegisterAdmin(e, d)

	// Every /v1 group installs its own catch-all carrying its auth
	// middleware; replace them so unknown paths get a plain 404.
	e.RouteNotFound("/v1", handler.NotFound)
	e.RouteNotFound("/v1/*", handler.NotFound)
}

// RegisterPublic registers routes that do not require authentication:
// health, readiness, Prometheus metrics and the event lookup.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Ready != nil {
		e.GET("/readyz", d.Ready)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/v1/events/:id", d.Event.Get)
}
