package notify

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/response"
)

// LogReader lists delivery logs.
type LogReader interface {
	ListByOccurrence(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.EmailLog, error)
}

// Handler serves email log endpoints.
type Handler struct {
	logs   LogReader
	logger *zap.Logger
}

// NewHandler creates an email log handler.
func NewHandler(logs LogReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, logger: logger}
}

// ListByOccurrence handles GET /scheduler/occurrences/:id/emails.
func (h *Handler) ListByOccurrence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence id")
		return
	}
	logs, err := h.logs.ListByOccurrence(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	if logs == nil {
		logs = []models.EmailLog{}
	}
	response.OK(c, logs)
}
