package members

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/response"
)

// Searcher is the read side used by the lookup endpoint.
type Searcher interface {
	Search(ctx context.Context, tenantID uuid.UUID, search string, limit int) ([]models.Member, error)
}

// Handler serves member lookups for rosters and registration pickers.
type Handler struct {
	repo   Searcher
	logger *zap.Logger
}

// NewHandler creates a members handler.
func NewHandler(repo Searcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Search handles GET /members?search=&limit=.
func (h *Handler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.Search(c.Request.Context(), middleware.TenantID(c), c.Query("search"), limit)
	if err != nil {
		h.logger.Error("member search failed", zap.Error(err))
		response.Internal(c, "failed to search members")
		return
	}
	response.OK(c, list)
}
