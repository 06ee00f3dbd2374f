package occurrences

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an occurrences repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch inserts occs in one transaction. Dates the schedule already covers are skipped even when
// the start time has since changed. A failure part way leaves nothing behind and a rerun is harmless.
func (r *Repository) InsertBatch(ctx context.Context, occs []models.Occurrence) (int, error) {
	const q = `INSERT INTO occurrences (tenant_id, schedule_id, ministry_id, occurrence_date, start_at, end_at, location, status, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT occurrences_schedule_date_key DO NOTHING`
	created := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, o := range occs {
			batch.Queue(q, o.TenantID, o.ScheduleID, o.MinistryID, o.OccurrenceDate, o.StartAt, o.EndAt, o.Location, o.Status, o.Capacity)
		}
		br := tx.SendBatch(ctx, batch)
		for range occs {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("insert occurrence: %w", err)
			}
			created += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// List returns occurrences matching f ordered by start time.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, f models.OccurrenceFilter) ([]models.Occurrence, error) {
	q := `SELECT ` + Columns + From + ` WHERE o.tenant_id = $1`
	args := []interface{}{tenantID}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(` AND o.status = $%d`, len(args))
	}
	if f.MinistryID != nil {
		args = append(args, *f.MinistryID)
		q += fmt.Sprintf(` AND o.ministry_id = $%d`, len(args))
	}
	if f.ScheduleID != nil {
		args = append(args, *f.ScheduleID)
		q += fmt.Sprintf(` AND o.schedule_id = $%d`, len(args))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		q += fmt.Sprintf(` AND o.occurrence_date >= $%d`, len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		q += fmt.Sprintf(` AND o.occurrence_date <= $%d`, len(args))
	}
	q += ` ORDER BY o.start_at`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Occurrence{}
	for rows.Next() {
		o, err := Scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// Get returns one occurrence within the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error) {
	return Scan(r.pool.QueryRow(ctx, `SELECT `+Columns+From+` WHERE o.tenant_id = $1 AND o.id = $2`, tenantID, id))
}

// Update saves the editable fields of o.
func (r *Repository) Update(ctx context.Context, o *models.Occurrence) error {
	const q = `UPDATE occurrences SET location = $3, capacity = $4, notes = NULLIF($5,''), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, o.TenantID, o.ID, o.Location, o.Capacity, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus changes the status only if it is still from.
func (r *Repository) SetStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.OccurrenceStatus, reason *string, at time.Time) error {
	var cancelledAt *time.Time
	if to == models.OccurrenceCancelled {
		cancelledAt = &at
	}
	const q = `UPDATE occurrences SET status = $4, cancellation_reason = $5, cancelled_at = $6, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, from, to, reason, cancelledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ActiveRegistrations returns the non-cancelled registrations with contact details.
func (r *Repository) ActiveRegistrations(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT r.id, r.tenant_id, r.occurrence_id, r.member_id, COALESCE(r.guest_name,''), COALESCE(r.guest_email,''),
			r.party_size, r.status, COALESCE(mb.first_name || ' ' || mb.last_name, ''), COALESCE(mb.email,'')
		FROM registrations r
		LEFT JOIN members mb ON mb.id = r.member_id
		WHERE r.tenant_id = $1 AND r.occurrence_id = $2 AND r.status <> 'cancelled'
		ORDER BY r.created_at, r.seq`
	rows, err := r.pool.Query(ctx, q, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Registration{}
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.TenantID, &reg.OccurrenceID, &reg.MemberID, &reg.GuestName, &reg.GuestEmail,
			&reg.PartySize, &reg.Status, &reg.MemberName, &reg.MemberEmail); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}
