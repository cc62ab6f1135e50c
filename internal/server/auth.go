package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// bearerAuth rejects every request to the group it's attached to unless it
// carries "Authorization: Bearer <token>" matching the configured token
// exactly (spec §6: "All others require bearer-token auth"). An empty
// configured token denies every request rather than silently accepting
// any bearer value, since that would make RequireAuth a no-op on a
// misconfigured deployment.
func bearerAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "server auth is misconfigured: no bearer token set")
			}
			got := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing bearer token")
			}
			return next(c)
		}
	}
}
