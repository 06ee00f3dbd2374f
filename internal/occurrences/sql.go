package occurrences

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shepherd-hub/backend/internal/models"
)

// Columns selects an occurrence joined with its schedule and ministry; use with From.
const Columns = `o.id, o.tenant_id, o.schedule_id, o.ministry_id, o.occurrence_date, o.start_at, o.end_at, o.location,
	o.status, o.capacity, o.registered_count, o.waitlist_count, o.checked_in_count, o.cancellation_reason,
	o.cancelled_at, COALESCE(o.notes,''), o.created_at, o.updated_at, s.name, m.name`

// From is the FROM clause matching Columns.
const From = ` FROM occurrences o
	JOIN schedules s ON s.id = o.schedule_id
	JOIN ministries m ON m.id = o.ministry_id`

// Scan reads a row selected with Columns.
func Scan(row pgx.Row) (*models.Occurrence, error) {
	var o models.Occurrence
	err := row.Scan(&o.ID, &o.TenantID, &o.ScheduleID, &o.MinistryID, &o.OccurrenceDate, &o.StartAt, &o.EndAt, &o.Location,
		&o.Status, &o.Capacity, &o.RegisteredCount, &o.WaitlistCount, &o.CheckedInCount, &o.CancellationReason,
		&o.CancelledAt, &o.Notes, &o.CreatedAt, &o.UpdatedAt, &o.ScheduleName, &o.MinistryName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Lock loads the occurrence and holds its row lock until tx ends. Registration and check-in
// serialize on this lock so capacity checks and counter updates cannot interleave.
func Lock(ctx context.Context, tx pgx.Tx, tenantID, id uuid.UUID) (*models.Occurrence, error) {
	return Scan(tx.QueryRow(ctx, `SELECT `+Columns+From+` WHERE o.tenant_id = $1 AND o.id = $2 FOR UPDATE OF o`, tenantID, id))
}

// RecomputeCounts rewrites the cached counters of the occurrence from its child rows.
func RecomputeCounts(ctx context.Context, q Querier, id uuid.UUID) (models.Counts, error) {
	const stmt = `UPDATE occurrences o SET
			registered_count = COALESCE((SELECT SUM(party_size) FROM registrations WHERE occurrence_id = o.id AND status = 'confirmed'), 0),
			waitlist_count = (SELECT COUNT(*) FROM registrations WHERE occurrence_id = o.id AND status = 'waitlisted'),
			checked_in_count = (SELECT COUNT(*) FROM attendance_records WHERE occurrence_id = o.id),
			updated_at = NOW()
		WHERE o.id = $1
		RETURNING registered_count, waitlist_count, checked_in_count`
	c := models.Counts{OccurrenceID: id}
	err := q.QueryRow(ctx, stmt, id).Scan(&c.Registered, &c.Waitlisted, &c.CheckedIn)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}
