package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's ID as a key segment
// for the rate limiter and the cache, or "anon" before JWTAuth has run.
func currentUserID(c echo.Context) string {
    if p, ok := PrincipalFrom(c); ok {
        return strconv.FormatUint(p.ID, 10)
    }
    switch v := c.Get(ctxUserID).(type) {
    case uint64:
        return strconv.FormatUint(v, 10)
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
