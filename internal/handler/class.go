package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ClassHandler serves the public class browsing endpoints.  Both routes
// accept an optional clientId query value; when present each class also
// reports that client's reservation status.
type ClassHandler struct {
	svc     ClassService
	logger  *zap.Logger
	timeout time.Duration
}

// NewClassHandler builds a ClassHandler.  A non-positive timeout falls back
// to five seconds.
func NewClassHandler(svc ClassService, logger *zap.Logger, timeout time.Duration) *ClassHandler {
	if svc == nil {
		panic("nil service passed to NewClassHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ClassHandler{svc: svc, logger: logger, timeout: timeout}
}

type listClassesQuery struct {
	From     string `query:"from" validate:"required"`
	To       string `query:"to" validate:"required"`
	ClientID string `query:"clientId" validate:"omitempty,number"`
}

// List handles GET /classes?from=&to=&clientId=.  It returns the classes
// whose time range overlaps [from, to), ordered by start time.
func (h *ClassHandler) List(c echo.Context) error {
	var q listClassesQuery
	if err := c.Bind(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Validate(&q); err != nil {
		return badRequest(c, "from and to are required; clientId must be numeric")
	}
	from, ok := parseTimeParam(q.From)
	if !ok {
		return badRequest(c, "invalid from")
	}
	to, ok := parseTimeParam(q.To)
	if !ok {
		return badRequest(c, "invalid to")
	}
	if !to.After(from) {
		return badRequest(c, "to must be after from")
	}
	clientID, err := parseOptionalClientID(q.ClientID)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	classes, err := h.svc.ListClasses(ctx, from, to, clientID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	items := make([]classDTO, 0, len(classes))
	for _, s := range classes {
		items = append(items, toClassDTO(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "classes": items})
}

// Get handles GET /classes/:id?clientId=.  It returns the class, its live
// occupancy and the participant list.
func (h *ClassHandler) Get(c echo.Context) error {
	classID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid class id")
	}
	clientID, err := parseOptionalClientID(c.QueryParam("clientId"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	detail, err := h.svc.GetClass(ctx, classID, clientID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "class": toClassDetailDTO(detail)})
}
