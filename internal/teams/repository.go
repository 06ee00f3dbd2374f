package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/database"
)

// Repository is the Postgres Store for ministry_team_members.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a teams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const teamSelect = `SELECT t.id, t.tenant_id, t.ministry_id, t.member_id, t.role, t.status,
	m.first_name || ' ' || m.last_name, COALESCE(m.email,''), t.joined_at, t.updated_at
	FROM ministry_team_members t JOIN members m ON m.id = t.member_id`

func scanTeamMember(row pgx.Row) (*models.TeamMember, error) {
	var tm models.TeamMember
	var role, status string
	err := row.Scan(&tm.ID, &tm.TenantID, &tm.MinistryID, &tm.MemberID, &role, &status, &tm.MemberName, &tm.Email, &tm.JoinedAt, &tm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotOnTeam
	}
	if err != nil {
		return nil, err
	}
	tm.Role, tm.Status = models.TeamRole(role), models.TeamStatus(status)
	return &tm, nil
}

// List returns the roster ordered by role then name.
func (r *Repository) List(ctx context.Context, tenantID, ministryID uuid.UUID) ([]models.TeamMember, error) {
	rows, err := r.pool.Query(ctx, teamSelect+` WHERE t.tenant_id = $1 AND t.ministry_id = $2
		ORDER BY CASE t.role WHEN 'leader' THEN 0 WHEN 'co-leader' THEN 1 WHEN 'coordinator' THEN 2 ELSE 3 END, m.last_name, m.first_name`,
		tenantID, ministryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.TeamMember{}
	for rows.Next() {
		tm, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *tm)
	}
	return list, rows.Err()
}

// Get returns the roster entry for member.
func (r *Repository) Get(ctx context.Context, tenantID, ministryID, memberID uuid.UUID) (*models.TeamMember, error) {
	return scanTeamMember(r.pool.QueryRow(ctx, teamSelect+` WHERE t.tenant_id = $1 AND t.ministry_id = $2 AND t.member_id = $3`,
		tenantID, ministryID, memberID))
}

// Add inserts a roster entry.
func (r *Repository) Add(ctx context.Context, tm *models.TeamMember) error {
	const q = `INSERT INTO ministry_team_members (tenant_id, ministry_id, member_id, role, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, joined_at, updated_at`
	err := r.pool.QueryRow(ctx, q, tm.TenantID, tm.MinistryID, tm.MemberID, string(tm.Role), string(tm.Status)).
		Scan(&tm.ID, &tm.JoinedAt, &tm.UpdatedAt)
	if database.IsUniqueViolation(err, "ministry_team_members_ministry_member_key") {
		return ErrAlreadyOnTeam
	}
	return err
}

// Update saves role and status.
func (r *Repository) Update(ctx context.Context, tm *models.TeamMember) error {
	const q = `UPDATE ministry_team_members SET role = $4, status = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND ministry_id = $2 AND member_id = $3 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, tm.TenantID, tm.MinistryID, tm.MemberID, string(tm.Role), string(tm.Status)).Scan(&tm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotOnTeam
	}
	return err
}

// Remove deletes a roster entry.
func (r *Repository) Remove(ctx context.Context, tenantID, ministryID, memberID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ministry_team_members WHERE tenant_id = $1 AND ministry_id = $2 AND member_id = $3`,
		tenantID, ministryID, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotOnTeam
	}
	return nil
}

// RosterMemberIDs returns the member ids on a ministry's roster.
func (r *Repository) RosterMemberIDs(ctx context.Context, tenantID, ministryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT member_id FROM ministry_team_members WHERE tenant_id = $1 AND ministry_id = $2`, tenantID, ministryID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
