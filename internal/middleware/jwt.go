package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/model"
)

// Context keys set by JWTAuth.
const (
    ctxPrincipal = "principal"
    ctxUserID    = "user_id"
    ctxRole      = "role"
)

// AccessClaims is the access token payload issued by the auth service.
// The subject carries the numeric user ID; "su" marks a superuser, who
// has admin rights whatever the role says.
type AccessClaims struct {
    Role      string `json:"role"`
    Superuser bool   `json:"su,omitempty"`
    jwt.RegisteredClaims
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// (HS256, signed with secret) and stores the resulting model.Principal in
// the request context.  The user ID and role are also stored under
// "user_id" and "role" for the rate limiter and RequireRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
    )
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            var claims AccessClaims
            tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            p, ok := principalFromClaims(claims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            c.Set(ctxPrincipal, p)
            c.Set(ctxUserID, p.ID)
            c.Set(ctxRole, p.Role)
            return next(c)
        }
    }
}

func principalFromClaims(cl AccessClaims) (model.Principal, bool) {
    id, err := strconv.ParseUint(cl.Subject, 10, 64)
    if err != nil || id == 0 {
        return model.Principal{}, false
    }
    role := strings.ToLower(strings.TrimSpace(cl.Role))
    if role == "" {
        role = model.RoleUser
    }
    if !model.ValidRole(role) {
        return model.Principal{}, false
    }
    return model.Principal{ID: id, Role: role, IsSuperuser: cl.Superuser}, true
}

// PrincipalFrom returns the principal stored by JWTAuth.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
    p, ok := c.Get(ctxPrincipal).(model.Principal)
    return p, ok
}
