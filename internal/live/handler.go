package live

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/pkg/response"
)

// OccurrenceLookup confirms the occurrence belongs to the caller's tenant and supplies the first snapshot.
type OccurrenceLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error)
}

// Handler upgrades live counter connections.
type Handler struct {
	hub         *Hub
	occurrences OccurrenceLookup
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHandler creates a live handler. allowedOrigins uses the CORS format ("*" or a comma-separated list).
func NewHandler(hub *Hub, occurrences OccurrenceLookup, allowedOrigins string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, occurrences: occurrences, upgrader: newUpgrader(allowedOrigins), logger: logger}
}

// Serve handles GET /scheduler/occurrences/:id/live?token=. The JWT middleware reads the token from the query.
func (h *Handler) Serve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence id")
		return
	}
	tenantID := middleware.TenantID(c)
	occ, err := h.occurrences.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, occurrences.ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		h.logger.Error("live lookup failed", zap.Error(err))
		response.Internal(c, "failed to open live view")
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(h.hub, conn, tenantID, id)
	h.hub.Register(client)
	snapshot, _ := json.Marshal(occ.Counts())
	client.send <- WSMessage{Event: EventCounts, Data: snapshot}
	go client.writePump(h.logger)
	client.readPump()
}
