package ministries

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/database"
	"github.com/shepherd-hub/backend/pkg/utils"
)

const codeConstraint = "ministries_tenant_code_key"

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ministries repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ministryColumns = `id, tenant_id, name, code, COALESCE(description,''), COALESCE(color,''), COALESCE(icon,''), is_active, created_at, updated_at`

func scanMinistry(row pgx.Row) (*models.Ministry, error) {
	var m models.Ministry
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Code, &m.Description, &m.Color, &m.Icon, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns ministries of the tenant ordered by name.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Ministry, error) {
	q := `SELECT ` + ministryColumns + ` FROM ministries WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if f.Active != nil {
		args = append(args, *f.Active)
		q += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, utils.LikePattern(f.Search))
		q += fmt.Sprintf(` AND (name ILIKE $%d OR code ILIKE $%d)`, len(args), len(args))
	}
	q += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Ministry{}
	for rows.Next() {
		m, err := scanMinistry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Get returns a ministry by ID within the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Ministry, error) {
	return scanMinistry(r.pool.QueryRow(ctx, `SELECT `+ministryColumns+` FROM ministries WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// Create inserts m and fills its generated fields.
func (r *Repository) Create(ctx context.Context, m *models.Ministry) error {
	const q = `INSERT INTO ministries (tenant_id, name, code, description, color, icon, is_active)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, m.TenantID, m.Name, m.Code, m.Description, m.Color, m.Icon, m.IsActive).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if database.IsUniqueViolation(err, codeConstraint) {
		return ErrDuplicateCode
	}
	return err
}

// Update saves the mutable fields of m.
func (r *Repository) Update(ctx context.Context, m *models.Ministry) error {
	const q = `UPDATE ministries SET name = $3, description = NULLIF($4,''), color = NULLIF($5,''), icon = NULLIF($6,''),
		is_active = $7, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, m.TenantID, m.ID, m.Name, m.Description, m.Color, m.Icon, m.IsActive).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a ministry.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ministries WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
