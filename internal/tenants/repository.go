// Package tenants serves the cross-tenant overview for super admins.
package tenants

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
)

// Repository reads tenant aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Overview returns one row per tenant. Upcoming occurrences start at or after now and are not cancelled;
// registrations and check-ins are counted from since.
func (r *Repository) Overview(ctx context.Context, now, since time.Time) ([]models.TenantOverview, error) {
	const q = `SELECT t.id, t.name, t.slug, t.is_active, t.created_at, t.updated_at,
			(SELECT COUNT(*) FROM ministries m WHERE m.tenant_id = t.id),
			(SELECT COUNT(*) FROM schedules s WHERE s.tenant_id = t.id AND s.is_active),
			(SELECT COUNT(*) FROM occurrences o WHERE o.tenant_id = t.id AND o.start_at >= $1 AND o.status <> 'cancelled'),
			(SELECT COUNT(*) FROM registrations rg WHERE rg.tenant_id = t.id AND rg.created_at >= $2 AND rg.status <> 'cancelled'),
			(SELECT COUNT(*) FROM attendance_records a WHERE a.tenant_id = t.id AND a.checked_in_at >= $2)
		FROM tenants t
		ORDER BY t.name`
	rows, err := r.pool.Query(ctx, q, now, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TenantOverview, error) {
		var o models.TenantOverview
		err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
			&o.Ministries, &o.ActiveSchedules, &o.UpcomingOccurrences, &o.RecentRegistrations, &o.RecentCheckIns)
		return o, err
	})
}
