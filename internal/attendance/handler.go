package attendance

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/internal/schedules"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Handler handles attendance HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an attendance handler.
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
	case errors.Is(err, occurrences.ErrNotFound), errors.Is(err, schedules.ErrNotFound), errors.Is(err, ErrNoOccurrenceToday):
		response.NotFound(c, err.Error())
	case errors.Is(err, members.ErrNotFound):
		response.Unprocessable(c, "validation failed", response.FieldErrors{"member_id": "member not found"})
	case errors.Is(err, ErrAlreadyCheckedIn), errors.Is(err, ErrOccurrenceCancelled):
		response.Conflict(c, err.Error())
	case errors.Is(err, qrtoken.ErrTokenExpired):
		response.Gone(c, "this QR code has expired")
	case errors.Is(err, qrtoken.ErrInvalidToken), errors.Is(err, qrtoken.ErrWrongPurpose):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if fields := validation.FieldErrors(err); fields != nil {
			response.Unprocessable(c, "validation failed", fields)
		} else {
			response.BadRequest(c, "invalid request: "+err.Error())
		}
		return false
	}
	return true
}

func occurrenceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /scheduler/occurrences/:id/attendance?include_stats=true.
func (h *Handler) List(c *gin.Context) {
	id, ok := occurrenceID(c)
	if !ok {
		return
	}
	ctx, tenantID := c.Request.Context(), middleware.TenantID(c)
	list, err := h.svc.List(ctx, tenantID, id)
	if err != nil {
		h.fail(c, err, "list attendance")
		return
	}
	if withStats, _ := strconv.ParseBool(c.Query("include_stats")); !withStats {
		response.OK(c, list)
		return
	}
	st, err := h.svc.Stats(ctx, tenantID, id)
	if err != nil {
		h.fail(c, err, "attendance stats")
		return
	}
	response.OK(c, gin.H{"records": list, "stats": st})
}

// CheckIn handles POST /scheduler/occurrences/:id/attendance.
func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := occurrenceID(c)
	if !ok {
		return
	}
	var in CheckInInput
	if !bindJSON(c, &in) {
		return
	}
	var by *uuid.UUID
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if uid, ok := v.(uuid.UUID); ok {
			by = &uid
		}
	}
	rec, err := h.svc.CheckIn(c.Request.Context(), middleware.TenantID(c), id, by, in)
	if err != nil {
		h.fail(c, err, "check in")
		return
	}
	response.Created(c, rec)
}

// Export handles GET /scheduler/occurrences/:id/attendance/export.
func (h *Handler) Export(c *gin.Context) {
	id, ok := occurrenceID(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request.Context(), middleware.TenantID(c), id, &buf); err != nil {
		h.fail(c, err, "export attendance")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance_`+id.String()+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// SelfCheckIn handles POST /scheduler/checkin (no auth; the QR token is the credential).
func (h *Handler) SelfCheckIn(c *gin.Context) {
	var in SelfCheckInInput
	if !bindJSON(c, &in) {
		return
	}
	rec, err := h.svc.SelfCheckIn(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "check in")
		return
	}
	name := rec.GuestName
	if rec.MemberID != nil {
		name = rec.MemberName
	}
	response.Created(c, gin.H{
		"id":            rec.ID,
		"occurrence_id": rec.OccurrenceID,
		"name":          name,
		"member":        rec.MemberID != nil,
		"checked_in_at": rec.CheckedInAt,
	})
}
