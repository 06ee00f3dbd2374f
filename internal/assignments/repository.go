package assignments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/database"
)

const occurrenceMemberKey = "team_assignments_occurrence_member_key"

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an assignments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assignmentColumns = `a.id, a.tenant_id, a.occurrence_id, a.member_id, a.role, a.status, COALESCE(a.notes,''),
	a.created_at, a.updated_at, COALESCE(TRIM(mb.first_name || ' ' || mb.last_name),'')`

const assignmentFrom = ` FROM team_assignments a LEFT JOIN members mb ON mb.id = a.member_id`

func scanAssignment(row pgx.Row) (*models.TeamAssignment, error) {
	var a models.TeamAssignment
	err := row.Scan(&a.ID, &a.TenantID, &a.OccurrenceID, &a.MemberID, &a.Role, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt, &a.MemberName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns the assignments of an occurrence ordered by member name.
func (r *Repository) List(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.TeamAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+assignmentFrom+`
		WHERE a.tenant_id = $1 AND a.occurrence_id = $2 ORDER BY mb.last_name, mb.first_name, a.created_at`, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.TeamAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Get returns one assignment within the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.TeamAssignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+assignmentFrom+` WHERE a.tenant_id = $1 AND a.id = $2`, tenantID, id))
}

// Create inserts a and fills its id, timestamps and member name.
func (r *Repository) Create(ctx context.Context, a *models.TeamAssignment) error {
	const q = `WITH ins AS (
			INSERT INTO team_assignments (tenant_id, occurrence_id, member_id, role, status, notes)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
			RETURNING id, member_id, created_at, updated_at
		)
		SELECT ins.id, ins.created_at, ins.updated_at, COALESCE(TRIM(mb.first_name || ' ' || mb.last_name),'')
		FROM ins LEFT JOIN members mb ON mb.id = ins.member_id`
	err := r.pool.QueryRow(ctx, q, a.TenantID, a.OccurrenceID, a.MemberID, a.Role, a.Status, a.Notes).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.MemberName)
	if database.IsUniqueViolation(err, occurrenceMemberKey) {
		return ErrAlreadyAssigned
	}
	return err
}

// Update saves status, role and notes.
func (r *Repository) Update(ctx context.Context, a *models.TeamAssignment) error {
	err := r.pool.QueryRow(ctx, `UPDATE team_assignments SET status = $3, role = $4, notes = NULLIF($5,''), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 RETURNING updated_at`, a.TenantID, a.ID, a.Status, a.Role, a.Notes).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes one assignment.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM team_assignments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
