package handler

import (
    "errors"
    "log/slog"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/middleware"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/service"
)

var errUnauthenticated = errors.New("unauthenticated")

// principalFrom returns the caller resolved by the JWT middleware.
func principalFrom(c echo.Context) (model.Principal, error) {
    p, ok := middleware.PrincipalFrom(c)
    if !ok {
        return model.Principal{}, errUnauthenticated
    }
    return p, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// statusFor maps a domain failure kind to its HTTP status.
func statusFor(k service.Kind) int {
    switch k {
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindForbidden:
        return http.StatusForbidden
    case service.KindCapacityExceeded, service.KindInvalidTransition, service.KindNotScannable:
        return http.StatusConflict
    case service.KindInvalidInput:
        return http.StatusBadRequest
    }
    return http.StatusInternalServerError
}

// writeError renders err as {"error", "code"}.  Domain failures are
// caller-correctable and are not logged; anything else is a server
// fault and is logged without exposing details to the client.
func writeError(c echo.Context, err error) error {
    if errors.Is(err, errUnauthenticated) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
    }
    var de *service.Error
    if errors.As(err, &de) {
        return c.JSON(statusFor(de.Kind), echo.Map{"error": de.Error(), "code": string(de.Kind)})
    }
    slog.ErrorContext(c.Request().Context(), "request failed",
        "method", c.Request().Method,
        "path", c.Path(),
        "err", err,
    )
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": string(service.KindInvalidInput)})
}

// NotFound answers paths that match no route.
func NotFound(c echo.Context) error {
    return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found", "code": string(service.KindNotFound)})
}
