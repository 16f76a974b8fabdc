package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with zap. A request ID is taken
// from X-Request-ID or generated, and echoed back on the response.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("request_id", rid),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if id, ok := ClientID(c); ok {
				fields = append(fields, zap.Uint64("client_id", id))
			}
			switch status := c.Response().Status; {
			case status >= 500:
				logger.Error("request", append(fields, zap.Error(err))...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		}
	}
}
