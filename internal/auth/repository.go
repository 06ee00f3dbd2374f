package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
)

// Repository handles user and tenant persistence for sign-up and login.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, tenant_id, member_id, email, password_hash, full_name, role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.TenantID, &u.MemberID, &u.Email, &u.Password, &u.FullName, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetTenantBySlug returns the tenant with slug.
func (r *Repository) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	const q = `SELECT id, name, slug, is_active, created_at, updated_at FROM tenants WHERE slug = $1`
	var t models.Tenant
	err := r.pool.QueryRow(ctx, q, slug).Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByTenant returns the tenant's users.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, member_id, email, full_name, role, created_at
		FROM users WHERE tenant_id = $1 ORDER BY full_name, email`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		var role string
		if err := rows.Scan(&u.ID, &u.TenantID, &u.MemberID, &u.Email, &u.FullName, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	return list, rows.Err()
}

// CreateUser inserts a user into an existing tenant.
func (r *Repository) CreateUser(ctx context.Context, tenantID uuid.UUID, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (tenant_id, email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4, $5) RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, tenantID, email, passwordHash, fullName, string(role)))
}

// CreateTenantWithAdmin creates a tenant and its first admin in one transaction.
func (r *Repository) CreateTenantWithAdmin(ctx context.Context, name, slug, email, passwordHash, fullName string) (*models.User, error) {
	var user *models.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var tenantID uuid.UUID
		if err := tx.QueryRow(ctx, `INSERT INTO tenants (name, slug) VALUES ($1, $2) RETURNING id`, name, slug).Scan(&tenantID); err != nil {
			return fmt.Errorf("insert tenant: %w", err)
		}
		const q = `INSERT INTO users (tenant_id, email, password_hash, full_name, role)
			VALUES ($1, $2, $3, $4, $5) RETURNING ` + userColumns
		u, err := scanUser(tx.QueryRow(ctx, q, tenantID, email, passwordHash, fullName, string(models.RoleAdmin)))
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}
