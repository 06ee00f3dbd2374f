package ministries

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Handler handles ministry HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a ministries handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrCodeImmutable):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func bindInput(c *gin.Context) (Input, bool) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		if fields := validation.FieldErrors(err); fields != nil {
			response.Unprocessable(c, "validation failed", fields)
		} else {
			response.BadRequest(c, "invalid request: "+err.Error())
		}
		return in, false
	}
	return in, true
}

// List handles GET /ministries?active=&search=.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid active filter")
			return
		}
		f.Active = &active
	}
	f.Search = c.Query("search")
	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), f)
	if err != nil {
		h.fail(c, err, "list ministries")
		return
	}
	response.OK(c, list)
}

// Get handles GET /ministries/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ministry id")
		return
	}
	m, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.fail(c, err, "get ministry")
		return
	}
	response.OK(c, m)
}

// Create handles POST /ministries.
func (h *Handler) Create(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}
	m, err := h.svc.Create(c.Request.Context(), middleware.TenantID(c), in)
	if err != nil {
		h.fail(c, err, "create ministry")
		return
	}
	response.Created(c, m)
}

// Update handles PUT /ministries/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ministry id")
		return
	}
	in, ok := bindInput(c)
	if !ok {
		return
	}
	m, err := h.svc.Update(c.Request.Context(), middleware.TenantID(c), id, in)
	if err != nil {
		h.fail(c, err, "update ministry")
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /ministries/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ministry id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		h.fail(c, err, "delete ministry")
		return
	}
	response.NoContent(c)
}
