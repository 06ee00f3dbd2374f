package assignments

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Handler handles team assignment HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an assignments handler.
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
	case errors.Is(err, ErrAlreadyAssigned):
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

// List handles GET /scheduler/occurrences/:id/team-assignments.
func (h *Handler) List(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), occID)
	if err != nil {
		h.fail(c, err, "list team assignments")
		return
	}
	response.OK(c, list)
}

// Create handles POST /scheduler/occurrences/:id/team-assignments.
func (h *Handler) Create(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in CreateInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.svc.Create(c.Request.Context(), middleware.TenantID(c), occID, in)
	if err != nil {
		h.fail(c, err, "assign team member")
		return
	}
	response.Created(c, a)
}

// Sync handles PUT /scheduler/occurrences/:id/team-assignments with the full selection.
func (h *Handler) Sync(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in SyncInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.svc.Sync(c.Request.Context(), middleware.TenantID(c), occID, in)
	if err != nil {
		h.fail(c, err, "sync team assignments")
		return
	}
	response.OK(c, res)
}

// Update handles PUT /scheduler/occurrences/:id/team-assignments/:assignmentId.
func (h *Handler) Update(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	id, ok := parseID(c, "assignmentId")
	if !ok {
		return
	}
	var in UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.svc.Update(c.Request.Context(), middleware.TenantID(c), occID, id, in)
	if err != nil {
		h.fail(c, err, "update team assignment")
		return
	}
	response.OK(c, a)
}

// Delete handles DELETE /scheduler/occurrences/:id/team-assignments/:assignmentId.
func (h *Handler) Delete(c *gin.Context) {
	occID, ok := parseID(c, "id")
	if !ok {
		return
	}
	id, ok := parseID(c, "assignmentId")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.TenantID(c), occID, id); err != nil {
		h.fail(c, err, "delete team assignment")
		return
	}
	response.NoContent(c)
}
