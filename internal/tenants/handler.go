package tenants

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/response"
)

// RecentWindow is how far back registrations and check-ins are counted.
const RecentWindow = 30 * 24 * time.Hour

// Store reads tenant aggregates.
type Store interface {
	Overview(ctx context.Context, now, since time.Time) ([]models.TenantOverview, error)
}

// Handler serves GET /api/admin/tenants/overview.
type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a tenants handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// OverviewResponse is the overview payload.
type OverviewResponse struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Since       time.Time               `json:"since"`
	Tenants     []models.TenantOverview `json:"tenants"`
	Totals      Totals                  `json:"totals"`
}

// Totals sums the overview across tenants.
type Totals struct {
	Tenants             int `json:"tenants"`
	ActiveTenants       int `json:"active_tenants"`
	UpcomingOccurrences int `json:"upcoming_occurrences"`
	RecentRegistrations int `json:"recent_registrations"`
	RecentCheckIns      int `json:"recent_check_ins"`
}

// Overview handles GET /admin/tenants/overview. Route middleware restricts it to super admins.
func (h *Handler) Overview(c *gin.Context) {
	now := h.now().UTC()
	since := now.Add(-RecentWindow)
	rows, err := h.store.Overview(c.Request.Context(), now, since)
	if err != nil {
		h.logger.Error("tenant overview failed", zap.Error(err))
		response.Internal(c, "failed to load tenant overview")
		return
	}
	if rows == nil {
		rows = []models.TenantOverview{}
	}
	out := OverviewResponse{GeneratedAt: now, Since: since, Tenants: rows}
	for _, r := range rows {
		out.Totals.Tenants++
		if r.IsActive {
			out.Totals.ActiveTenants++
		}
		out.Totals.UpcomingOccurrences += r.UpcomingOccurrences
		out.Totals.RecentRegistrations += r.RecentRegistrations
		out.Totals.RecentCheckIns += r.RecentCheckIns
	}
	response.OK(c, out)
}
