package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware function that enforces that the
// authenticated caller has one of the specified roles.  The roles
// accepted should correspond to the values the identity provider puts
// in the token's "role" claim.  If the caller's role is not in the
// allowed set, the request is aborted with a 403 Forbidden response.
// It assumes Authenticate has already stored the role on the context.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
			}
			return next(c)
		}
	}
}
