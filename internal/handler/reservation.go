package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/gym-class-booking/internal/middleware"
)

// ReservationHandler serves the booking endpoints.  All methods assume that
// Authenticate and RequireRole have already run; the acting client is the
// one stored on the context, never one taken from the request.
type ReservationHandler struct {
	svc     ClassService
	logger  *zap.Logger
	timeout time.Duration
}

// NewReservationHandler builds a ReservationHandler.
func NewReservationHandler(svc ClassService, logger *zap.Logger, timeout time.Duration) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ReservationHandler{svc: svc, logger: logger, timeout: timeout}
}

type reserveRequest struct {
	Waitlist bool `json:"waitlist"`
}

// Reserve handles POST /classes/:id/reservations.  It returns 201 with the
// new reservation, or 200 when the client already held one.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	clientID, ok := middleware.ClientID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	classID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid class id")
	}
	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	res, err := h.svc.Reserve(ctx, classID, clientID, body.Waitlist)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, toReserveDTO(res))
}

// CancelByID handles DELETE /reservations/:reservation_id.
func (h *ReservationHandler) CancelByID(c echo.Context) error {
	clientID, ok := middleware.ClientID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	reservationID, ok := parseID(c, "reservation_id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	res, err := h.svc.CancelByID(ctx, reservationID, clientID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toCancelDTO(res))
}

// CancelCurrent handles DELETE /classes/:id/reservations/current, which
// cancels whatever reservation the caller holds in the class.
func (h *ReservationHandler) CancelCurrent(c echo.Context) error {
	clientID, ok := middleware.ClientID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	classID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid class id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	res, err := h.svc.CancelCurrent(ctx, classID, clientID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toCancelDTO(res))
}
