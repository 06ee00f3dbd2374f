package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/utils"
)

// ErrNotFound is returned when no member matches in the tenant.
var ErrNotFound = errors.New("member not found")

// Repository reads member records. Members are maintained by another service.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a members repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `id, tenant_id, first_name, last_name, COALESCE(email,''), COALESCE(phone,''), created_at`

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.TenantID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Get returns a member of the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Member, error) {
	return scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// GetByEmail returns the member with email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Member, error) {
	const q = `SELECT ` + memberColumns + ` FROM members WHERE tenant_id = $1 AND lower(email) = $2 ORDER BY created_at LIMIT 1`
	return scanMember(r.pool.QueryRow(ctx, q, tenantID, utils.NormalizeEmail(email)))
}

// Search matches name or email. An empty search lists members alphabetically.
func (r *Repository) Search(ctx context.Context, tenantID uuid.UUID, search string, limit int) ([]models.Member, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	q := `SELECT ` + memberColumns + ` FROM members WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if search != "" {
		q += ` AND (first_name || ' ' || last_name ILIKE $2 OR email ILIKE $2)`
		args = append(args, utils.LikePattern(search))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d`, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}
