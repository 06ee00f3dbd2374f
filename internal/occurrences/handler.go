package occurrences

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/recurrence"
	"github.com/shepherd-hub/backend/internal/schedules"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Handler handles occurrence HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an occurrences handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		response.Unprocessable(c, "validation failed", verr.Fields)
	case errors.Is(err, ErrNotFound), errors.Is(err, schedules.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrScheduleInactive):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrReasonRequired):
		response.Unprocessable(c, "validation failed", response.FieldErrors{"cancellation_reason": err.Error()})
	case errors.Is(err, ErrInvalidMonth):
		response.BadRequest(c, err.Error())
	case errors.Is(err, recurrence.ErrInvalidRule), errors.Is(err, recurrence.ErrInvalidTimezone),
		errors.Is(err, recurrence.ErrInvalidTimeOfDay), errors.Is(err, recurrence.ErrInvalidWindow),
		errors.Is(err, recurrence.ErrTooManyOccurrences):
		response.Unprocessable(c, err.Error(), nil)
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func bindJSON(c *gin.Context, v interface{}, optional bool) bool {
	err := c.ShouldBindJSON(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	if fields := validation.FieldErrors(err); fields != nil {
		response.Unprocessable(c, "validation failed", fields)
	} else {
		response.BadRequest(c, "invalid request: "+err.Error())
	}
	return false
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// GenerateRequest optionally overrides the generation window.
type GenerateRequest struct {
	StartDate string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// Generate handles POST /scheduler/schedules/:id/generate-occurrences.
func (h *Handler) Generate(c *gin.Context) {
	scheduleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req GenerateRequest
	if !bindJSON(c, &req, true) {
		return
	}
	if (req.StartDate == "") != (req.EndDate == "") {
		response.Unprocessable(c, "validation failed", response.FieldErrors{"end_date": "start_date and end_date must be given together"})
		return
	}
	var window *recurrence.Window
	if req.StartDate != "" {
		from, _ := time.Parse(dateLayout, req.StartDate)
		to, _ := time.Parse(dateLayout, req.EndDate)
		window = &recurrence.Window{From: from, To: to}
	}
	res, err := h.svc.Generate(c.Request.Context(), middleware.TenantID(c), scheduleID, window)
	if err != nil {
		h.fail(c, err, "generate occurrences")
		return
	}
	response.OK(c, res)
}

// List handles GET /scheduler/occurrences?status=&ministry_id=&schedule_id=&start_date=&end_date=.
func (h *Handler) List(c *gin.Context) {
	var f models.OccurrenceFilter
	if v := c.Query("status"); v != "" {
		st := models.OccurrenceStatus(v)
		if !st.Valid() {
			response.BadRequest(c, "invalid status filter")
			return
		}
		f.Status = &st
	}
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"ministry_id", &f.MinistryID}, {"schedule_id", &f.ScheduleID}} {
		if v := c.Query(p.name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.BadRequest(c, "invalid "+p.name)
				return
			}
			*p.dst = &id
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &f.StartDate}, {"end_date", &f.EndDate}} {
		if v := c.Query(p.name); v != "" {
			d, err := time.Parse(dateLayout, v)
			if err != nil {
				response.BadRequest(c, "invalid "+p.name+" (YYYY-MM-DD)")
				return
			}
			*p.dst = &d
		}
	}
	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), f)
	if err != nil {
		h.fail(c, err, "list occurrences")
		return
	}
	response.OK(c, list)
}

// Get handles GET /scheduler/occurrences/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.fail(c, err, "get occurrence")
		return
	}
	response.OK(c, o)
}

// Update handles PUT /scheduler/occurrences/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in UpdateInput
	if !bindJSON(c, &in, false) {
		return
	}
	o, err := h.svc.Update(c.Request.Context(), middleware.TenantID(c), id, in)
	if err != nil {
		h.fail(c, err, "update occurrence")
		return
	}
	response.OK(c, o)
}

// CancelRequest is the body of POST /scheduler/occurrences/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// Cancel handles POST /scheduler/occurrences/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if !bindJSON(c, &req, false) {
		return
	}
	o, err := h.svc.Cancel(c.Request.Context(), middleware.TenantID(c), id, req.Reason)
	if err != nil {
		h.fail(c, err, "cancel occurrence")
		return
	}
	response.OK(c, o)
}

// Calendar handles GET /scheduler/calendar?month=&year=&ministry_id=.
func (h *Handler) Calendar(c *gin.Context) {
	now := time.Now()
	month, year := int(now.Month()), now.Year()
	var err error
	if v := c.Query("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			response.BadRequest(c, "invalid month")
			return
		}
	}
	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			response.BadRequest(c, "invalid year")
			return
		}
	}
	var ministryID *uuid.UUID
	if v := c.Query("ministry_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid ministry_id")
			return
		}
		ministryID = &id
	}
	cal, err := h.svc.Calendar(c.Request.Context(), middleware.TenantID(c), year, month, ministryID)
	if err != nil {
		h.fail(c, err, "load calendar")
		return
	}
	response.OK(c, cal)
}
