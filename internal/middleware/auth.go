package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/identity"
)

// Context keys populated by Authenticate.
const (
	ContextClientID = "client_id"
	ContextRole     = "role"
)

// Authenticate returns an Echo middleware that validates the Bearer token
// with the given verifier and stores the verified client ID (uint64) and
// role on the context. Credentials are never re-checked downstream.
func Authenticate(v identity.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			id, err := v.Verify(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
			}

			c.Set(ContextClientID, id.ClientID)
			c.Set(ContextRole, id.Role)
			return next(c)
		}
	}
}

// ClientID returns the verified client ID stored by Authenticate.
func ClientID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextClientID).(uint64)
	return id, ok && id != 0
}
