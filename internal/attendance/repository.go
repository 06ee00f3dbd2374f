package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/pkg/database"
)

const memberCheckedInKey = "attendance_records_occurrence_member_key"

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns check-ins of an occurrence, newest first.
func (r *Repository) List(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.AttendanceRecord, error) {
	const q = `SELECT a.id, a.tenant_id, a.occurrence_id, a.member_id, COALESCE(a.guest_name,''), a.checkin_method,
			a.checked_in_at, a.checked_in_by, COALESCE(a.notes,''), COALESCE(TRIM(mb.first_name || ' ' || mb.last_name),'')
		FROM attendance_records a
		LEFT JOIN members mb ON mb.id = a.member_id
		WHERE a.tenant_id = $1 AND a.occurrence_id = $2
		ORDER BY a.checked_in_at DESC`
	rows, err := r.pool.Query(ctx, q, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.AttendanceRecord{}
	for rows.Next() {
		var a models.AttendanceRecord
		if err := rows.Scan(&a.ID, &a.TenantID, &a.OccurrenceID, &a.MemberID, &a.GuestName, &a.CheckinMethod,
			&a.CheckedInAt, &a.CheckedInBy, &a.Notes, &a.MemberName); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// OccurrenceOn returns the earliest occurrence of the schedule on date, cancelled ones last.
func (r *Repository) OccurrenceOn(ctx context.Context, tenantID, scheduleID uuid.UUID, date time.Time) (*models.Occurrence, error) {
	occ, err := occurrences.Scan(r.pool.QueryRow(ctx, `SELECT `+occurrences.Columns+occurrences.From+`
		WHERE o.tenant_id = $1 AND o.schedule_id = $2 AND o.occurrence_date = $3
		ORDER BY (o.status = 'cancelled'), o.start_at
		LIMIT 1`, tenantID, scheduleID, date))
	if errors.Is(err, occurrences.ErrNotFound) {
		return nil, ErrNoOccurrenceToday
	}
	return occ, err
}

// InOccurrence locks the occurrence row and runs fn in the same transaction.
func (r *Repository) InOccurrence(ctx context.Context, tenantID, occurrenceID uuid.UUID, fn func(Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		occ, err := occurrences.Lock(ctx, tx, tenantID, occurrenceID)
		if err != nil {
			return err
		}
		return fn(&pgTx{tx: tx, occ: occ})
	})
}

type pgTx struct {
	tx  pgx.Tx
	occ *models.Occurrence
}

func (t *pgTx) Occurrence() *models.Occurrence { return t.occ }

func (t *pgTx) HasMember(ctx context.Context, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE occurrence_id = $1 AND member_id = $2)`,
		t.occ.ID, memberID).Scan(&exists)
	return exists, err
}

func (t *pgTx) Insert(ctx context.Context, rec *models.AttendanceRecord) error {
	const q = `INSERT INTO attendance_records (tenant_id, occurrence_id, member_id, guest_name, checkin_method, checked_in_by, notes)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, NULLIF($7,''))
		RETURNING id, checked_in_at`
	err := t.tx.QueryRow(ctx, q, rec.TenantID, t.occ.ID, rec.MemberID, rec.GuestName, rec.CheckinMethod, rec.CheckedInBy, rec.Notes).
		Scan(&rec.ID, &rec.CheckedInAt)
	if database.IsUniqueViolation(err, memberCheckedInKey) {
		return ErrAlreadyCheckedIn
	}
	return err
}

func (t *pgTx) RefreshCounts(ctx context.Context) (models.Counts, error) {
	return occurrences.RecomputeCounts(ctx, t.tx, t.occ.ID)
}
