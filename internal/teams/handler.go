package teams

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/ministries"
	"github.com/shepherd-hub/backend/pkg/response"
)

// Handler serves /ministries/:id/team.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a teams handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ministries.ErrNotFound), errors.Is(err, members.ErrNotFound), errors.Is(err, ErrNotOnTeam):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAlreadyOnTeam):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidStatus):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func parseIDs(c *gin.Context) (ministryID, memberID uuid.UUID, ok bool) {
	ministryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ministry id")
		return ministryID, memberID, false
	}
	if raw := c.Param("memberId"); raw != "" {
		memberID, err = uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid member id")
			return ministryID, memberID, false
		}
	}
	return ministryID, memberID, true
}

// List handles GET /ministries/:id/team.
func (h *Handler) List(c *gin.Context) {
	ministryID, _, ok := parseIDs(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), ministryID)
	if err != nil {
		h.fail(c, err, "list team")
		return
	}
	response.OK(c, list)
}

// Add handles POST /ministries/:id/team.
func (h *Handler) Add(c *gin.Context) {
	ministryID, _, ok := parseIDs(c)
	if !ok {
		return
	}
	var in SaveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	tm, err := h.svc.Add(c.Request.Context(), middleware.TenantID(c), ministryID, in)
	if err != nil {
		h.fail(c, err, "add team member")
		return
	}
	response.Created(c, tm)
}

// Update handles PUT /ministries/:id/team/:memberId.
func (h *Handler) Update(c *gin.Context) {
	ministryID, memberID, ok := parseIDs(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	tm, err := h.svc.Update(c.Request.Context(), middleware.TenantID(c), ministryID, memberID, in)
	if err != nil {
		h.fail(c, err, "update team member")
		return
	}
	response.OK(c, tm)
}

// Remove handles DELETE /ministries/:id/team/:memberId.
func (h *Handler) Remove(c *gin.Context) {
	ministryID, memberID, ok := parseIDs(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), middleware.TenantID(c), ministryID, memberID); err != nil {
		h.fail(c, err, "remove team member")
		return
	}
	response.NoContent(c)
}
