package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns a health-check handler used by load balancers and
// monitoring systems.  It answers a plain text "ok" with 200 when the
// database responds to a ping, and 503 otherwise.  A nil db skips the ping.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return c.String(http.StatusServiceUnavailable, "database unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
