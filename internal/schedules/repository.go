package schedules

import (
	"context"
	"encoding/json"
	"errors"
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

// NewRepository creates a schedules repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const scheduleColumns = `s.id, s.tenant_id, s.ministry_id, s.name, COALESCE(s.description,''), s.schedule_type,
	s.start_date, s.end_date, s.start_time, s.end_time, s.timezone, COALESCE(s.recurrence_rule,''),
	COALESCE(s.location,''), s.location_type, COALESCE(s.virtual_meeting_url,''), s.capacity,
	s.registration_required, s.form_schema, COALESCE(s.cover_photo_url,''), COALESCE(s.cover_photo_key,''),
	s.is_active, s.created_at, s.updated_at, m.name`

const scheduleFrom = ` FROM schedules s JOIN ministries m ON m.id = s.ministry_id`

func scanSchedule(row pgx.Row) (*models.Schedule, error) {
	var s models.Schedule
	var form []byte
	err := row.Scan(&s.ID, &s.TenantID, &s.MinistryID, &s.Name, &s.Description, &s.ScheduleType,
		&s.StartDate, &s.EndDate, &s.StartTime, &s.EndTime, &s.Timezone, &s.RecurrenceRule,
		&s.Location, &s.LocationType, &s.VirtualMeetingURL, &s.Capacity,
		&s.RegistrationRequired, &form, &s.CoverPhotoURL, &s.CoverPhotoKey,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt, &s.MinistryName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.FormSchema = []models.FormField{}
	if len(form) > 0 {
		if err := json.Unmarshal(form, &s.FormSchema); err != nil {
			return nil, fmt.Errorf("decode form_schema: %w", err)
		}
	}
	return &s, nil
}

// List returns schedules of the tenant.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Schedule, error) {
	q := `SELECT ` + scheduleColumns + scheduleFrom + ` WHERE s.tenant_id = $1`
	args := []interface{}{tenantID}
	if f.MinistryID != nil {
		args = append(args, *f.MinistryID)
		q += fmt.Sprintf(` AND s.ministry_id = $%d`, len(args))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		q += fmt.Sprintf(` AND s.is_active = $%d`, len(args))
	}
	q += ` ORDER BY s.created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Get returns a schedule by ID within the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Schedule, error) {
	return scanSchedule(r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+scheduleFrom+` WHERE s.tenant_id = $1 AND s.id = $2`, tenantID, id))
}

// Create inserts s and fills its generated fields.
func (r *Repository) Create(ctx context.Context, s *models.Schedule) error {
	form, err := json.Marshal(s.FormSchema)
	if err != nil {
		return err
	}
	const q = `INSERT INTO schedules (tenant_id, ministry_id, name, description, schedule_type, start_date, end_date,
			start_time, end_time, timezone, recurrence_rule, location, location_type, virtual_meeting_url, capacity,
			registration_required, form_schema, is_active)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8, $9, $10, NULLIF($11,''), NULLIF($12,''), $13, NULLIF($14,''),
			$15, $16, $17, $18)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.TenantID, s.MinistryID, s.Name, s.Description, s.ScheduleType, s.StartDate, s.EndDate,
		s.StartTime, s.EndTime, s.Timezone, s.RecurrenceRule, s.Location, s.LocationType, s.VirtualMeetingURL, s.Capacity,
		s.RegistrationRequired, form, s.IsActive).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update saves the editable fields of s.
func (r *Repository) Update(ctx context.Context, s *models.Schedule) error {
	form, err := json.Marshal(s.FormSchema)
	if err != nil {
		return err
	}
	const q = `UPDATE schedules SET ministry_id = $3, name = $4, description = NULLIF($5,''), schedule_type = $6,
			start_date = $7, end_date = $8, start_time = $9, end_time = $10, timezone = $11,
			recurrence_rule = NULLIF($12,''), location = NULLIF($13,''), location_type = $14,
			virtual_meeting_url = NULLIF($15,''), capacity = $16, registration_required = $17, form_schema = $18,
			is_active = $19, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`
	err = r.pool.QueryRow(ctx, q, s.TenantID, s.ID, s.MinistryID, s.Name, s.Description, s.ScheduleType,
		s.StartDate, s.EndDate, s.StartTime, s.EndTime, s.Timezone,
		s.RecurrenceRule, s.Location, s.LocationType,
		s.VirtualMeetingURL, s.Capacity, s.RegistrationRequired, form,
		s.IsActive).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a schedule. Occurrences cascade.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCoverPhoto stores the cover photo location; empty values clear it.
func (r *Repository) SetCoverPhoto(ctx context.Context, tenantID, id uuid.UUID, url, key string) error {
	const q = `UPDATE schedules SET cover_photo_url = NULLIF($3,''), cover_photo_key = NULLIF($4,''), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, url, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertQRToken records an issued token.
func (r *Repository) InsertQRToken(ctx context.Context, t *models.ScheduleQRToken) error {
	const q = `INSERT INTO schedule_qr_tokens (tenant_id, schedule_id, purpose, token, expires_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, t.TenantID, t.ScheduleID, t.Purpose, t.Token, t.ExpiresAt).Scan(&t.ID, &t.CreatedAt)
}

// LatestQRToken returns the most recently issued token still valid at now.
func (r *Repository) LatestQRToken(ctx context.Context, tenantID, scheduleID uuid.UUID, purpose models.QRPurpose, now time.Time) (*models.ScheduleQRToken, error) {
	const q = `SELECT id, tenant_id, schedule_id, purpose, token, expires_at, created_at
		FROM schedule_qr_tokens
		WHERE tenant_id = $1 AND schedule_id = $2 AND purpose = $3 AND expires_at > $4
		ORDER BY created_at DESC LIMIT 1`
	var t models.ScheduleQRToken
	err := r.pool.QueryRow(ctx, q, tenantID, scheduleID, purpose, now).
		Scan(&t.ID, &t.TenantID, &t.ScheduleID, &t.Purpose, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQRNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NextOccurrence returns the earliest scheduled occurrence that has not ended by after.
func (r *Repository) NextOccurrence(ctx context.Context, tenantID, scheduleID uuid.UUID, after time.Time) (*models.Occurrence, error) {
	const q = `SELECT o.id, o.tenant_id, o.schedule_id, o.ministry_id, o.occurrence_date, o.start_at, o.end_at,
			COALESCE(o.location, s.location), o.status, COALESCE(o.capacity, s.capacity),
			o.registered_count, o.waitlist_count, o.checked_in_count, o.created_at, o.updated_at, s.name
		FROM occurrences o JOIN schedules s ON s.id = o.schedule_id
		WHERE o.tenant_id = $1 AND o.schedule_id = $2 AND o.status = 'scheduled' AND o.end_at > $3
		ORDER BY o.start_at LIMIT 1`
	var o models.Occurrence
	err := r.pool.QueryRow(ctx, q, tenantID, scheduleID, after).Scan(&o.ID, &o.TenantID, &o.ScheduleID, &o.MinistryID,
		&o.OccurrenceDate, &o.StartAt, &o.EndAt, &o.Location, &o.Status, &o.Capacity,
		&o.RegisteredCount, &o.WaitlistCount, &o.CheckedInCount, &o.CreatedAt, &o.UpdatedAt, &o.ScheduleName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoUpcoming
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
