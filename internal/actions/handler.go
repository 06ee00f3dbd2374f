package actions

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/pkg/response"
)

const maxBodyBytes = 1 << 20

// Handler exposes the dispatcher over HTTP.
type Handler struct {
	d      *Dispatcher
	logger *zap.Logger
}

// NewHandler creates an actions handler.
func NewHandler(d *Dispatcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{d: d, logger: logger}
}

// Run handles POST /actions/:handlerId.
func (h *Handler) Run(c *gin.Context) {
	kind, err := ParseKind(c.Param("handlerId"))
	if err != nil {
		response.Action(c, response.ActionResult{Status: http.StatusNotFound, Message: err.Error()})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		response.Action(c, response.ActionResult{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	res := h.d.Dispatch(c.Request.Context(), kind, middleware.TenantID(c), body)
	h.logger.Debug("action", zap.String("action", kind.String()), zap.Int("status", res.Status))
	response.Action(c, res)
}
