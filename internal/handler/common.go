package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/gym-class-booking/internal/service"
)

// defaultTimeout bounds the store work of a single request.
const defaultTimeout = 5 * time.Second

// RequestValidator adapts go-playground/validator to echo.Validator so
// handlers can call c.Validate on bound request structs.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator returns the validator registered on the echo instance.
func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseOptionalClientID parses the clientId query value.  An empty value
// means no client was supplied.
func parseOptionalClientID(raw string) (*uint64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, errors.New("clientId must be a positive integer")
	}
	return &id, nil
}

// timeLayouts are the accepted forms of the from/to query values.  Values
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimeParam(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": msg})
}

// writeError maps a service error onto its HTTP status.  Unknown errors are
// logged and reported as a generic 500.
func writeError(c echo.Context, logger *zap.Logger, err error) error {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, service.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrClassNotFound):
		status, msg = http.StatusNotFound, service.ErrClassNotFound.Error()
	case errors.Is(err, service.ErrReservationNotFound):
		status, msg = http.StatusNotFound, service.ErrReservationNotFound.Error()
	case errors.Is(err, service.ErrForbidden):
		status, msg = http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, service.ErrClassFull):
		status, msg = http.StatusConflict, service.ErrClassFull.Error()
	case errors.Is(err, service.ErrWaitlistUnavailable):
		status, msg = http.StatusConflict, service.ErrWaitlistUnavailable.Error()
	case errors.Is(err, service.ErrClassCancelled):
		status, msg = http.StatusConflict, service.ErrClassCancelled.Error()
	case errors.Is(err, service.ErrReservationsClosed):
		status, msg = http.StatusUnprocessableEntity, service.ErrReservationsClosed.Error()
	case errors.Is(err, service.ErrCancellationCutoffPassed):
		status, msg = http.StatusUnprocessableEntity, service.ErrCancellationCutoffPassed.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}
