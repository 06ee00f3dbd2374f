package registrations

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
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
	case errors.Is(err, ErrNotFound), errors.Is(err, occurrences.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, members.ErrNotFound):
		response.Unprocessable(c, "validation failed", response.FieldErrors{"member_id": "member not found"})
	case errors.Is(err, ErrOccurrenceClosed), errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrInvalidTransition):
		response.Conflict(c, err.Error())
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

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /scheduler/occurrences/:id/registrations?status=.
func (h *Handler) List(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var status *models.RegistrationStatus
	if v := c.Query("status"); v != "" {
		st := models.RegistrationStatus(v)
		if !st.Valid() {
			response.BadRequest(c, "invalid status filter")
			return
		}
		status = &st
	}
	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), occID, status)
	if err != nil {
		h.fail(c, err, "list registrations")
		return
	}
	response.OK(c, list)
}

// Create handles POST /scheduler/occurrences/:id/registrations.
func (h *Handler) Create(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	reg, err := h.svc.Register(c.Request.Context(), middleware.TenantID(c), occID, in)
	if err != nil {
		h.fail(c, err, "register")
		return
	}
	response.Created(c, reg)
}

// UpdateStatusRequest is the body of PUT /scheduler/registrations/:regId.
type UpdateStatusRequest struct {
	Status models.RegistrationStatus `json:"status" binding:"required,oneof=confirmed cancelled"`
}

// UpdateStatus handles PUT /scheduler/occurrences/:id/registrations/:regId.
func (h *Handler) UpdateStatus(c *gin.Context) {
	regID, ok := parseID(c, "regId")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), middleware.TenantID(c), regID, req.Status)
	if err != nil {
		h.fail(c, err, "update registration")
		return
	}
	response.OK(c, res)
}

// Export handles GET /scheduler/occurrences/:id/registrations/export.
func (h *Handler) Export(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request.Context(), middleware.TenantID(c), occID, &buf); err != nil {
		h.fail(c, err, "export registrations")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="registrations_`+occID.String()+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Public handles GET /scheduler/occurrences/:id/public (no auth).
func (h *Handler) Public(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Public(c.Request.Context(), occID)
	if err != nil {
		h.fail(c, err, "load occurrence")
		return
	}
	response.OK(c, view)
}

// PublicRegister handles POST /scheduler/occurrences/:id/public/register (no auth).
func (h *Handler) PublicRegister(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in PublicRegisterInput
	if !bindJSON(c, &in) {
		return
	}
	reg, err := h.svc.PublicRegister(c.Request.Context(), occID, in)
	if err != nil {
		h.fail(c, err, "register")
		return
	}
	response.Created(c, gin.H{
		"id":                reg.ID,
		"status":            reg.Status,
		"waitlist_position": reg.WaitlistPosition,
		"party_size":        reg.PartySize,
	})
}
