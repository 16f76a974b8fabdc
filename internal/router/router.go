package router // package router defines how HTTP routes are registered for the API

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/gym-class-booking/internal/handler"    // handlers that translate HTTP to service calls
	"github.com/iliyamo/gym-class-booking/internal/identity"   // bearer token verification
	"github.com/iliyamo/gym-class-booking/internal/middleware" // authentication, role and rate limit middlewares
)

// Deps carries everything RegisterRoutes needs.  RateLimit may be nil, in
// which case booking writes are not throttled.  DB may be nil to skip the
// database ping in /healthz.  Logger defaults to a no-op logger.
type Deps struct {
	Classes      *handler.ClassHandler
	Reservations *handler.ReservationHandler
	Verifier     identity.Verifier
	RateLimit    echo.MiddlewareFunc
	DB           handler.Pinger
	Logger       *zap.Logger
}

// RegisterRoutes registers every endpoint of the service on e and installs
// the request validator and error handler used by the handlers.
func RegisterRoutes(e *echo.Echo, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	// Operational endpoints.
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Browsing is public.  The optional clientId query value only decorates
	// the response with that client's status.
	e.GET("/classes", d.Classes.List)
	e.GET("/classes/:id", d.Classes.Get)

	// Booking writes require a verified CLIENT token.  The rate limiter
	// runs after authentication so it can key on the client id.
	mws := []echo.MiddlewareFunc{
		middleware.Authenticate(d.Verifier),
		middleware.RequireRole(identity.RoleClient),
	}
	if d.RateLimit != nil {
		mws = append(mws, d.RateLimit)
	}
	// The middlewares are attached per route rather than through a root
	// group so unknown paths still answer 404 instead of 401.
	e.POST("/classes/:id/reservations", d.Reservations.Reserve, mws...)
	e.DELETE("/classes/:id/reservations/current", d.Reservations.CancelCurrent, mws...)
	e.DELETE("/reservations/:reservation_id", d.Reservations.CancelByID, mws...)
}

// errorHandler renders errors that reach echo itself (unknown routes, wrong
// methods, recovered panics) in the {success, error} envelope.  Client errors
// keep echo's status and message; everything else is a generic 500.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			code = he.Code
			msg = http.StatusText(code)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
		} else {
			logger.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, echo.Map{"success": false, "error": msg})
		}
		if werr != nil {
			logger.Warn("write error response failed", zap.Error(werr))
		}
	}
}
