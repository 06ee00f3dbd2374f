package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/pkg/database"
)

const (
	memberActiveConstraint = "registrations_member_active_key"
	guestActiveConstraint  = "registrations_guest_active_key"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `r.id, r.seq, r.tenant_id, r.occurrence_id, r.member_id, COALESCE(r.guest_name,''),
	COALESCE(r.guest_email,''), COALESCE(r.guest_phone,''), r.party_size, r.status, r.waitlist_position,
	r.form_responses, r.created_at, r.updated_at,
	COALESCE(TRIM(mb.first_name || ' ' || mb.last_name),''), COALESCE(mb.email,'')`

const registrationFrom = ` FROM registrations r LEFT JOIN members mb ON mb.id = r.member_id`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var form []byte
	err := row.Scan(&reg.ID, &reg.Seq, &reg.TenantID, &reg.OccurrenceID, &reg.MemberID, &reg.GuestName,
		&reg.GuestEmail, &reg.GuestPhone, &reg.PartySize, &reg.Status, &reg.WaitlistPosition,
		&form, &reg.CreatedAt, &reg.UpdatedAt,
		&reg.MemberName, &reg.MemberEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(form) > 0 {
		reg.FormResponses = form
	}
	return &reg, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collect(ctx context.Context, q querier, sql string, args ...any) ([]models.Registration, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// List returns the registrations of an occurrence in arrival order.
func (r *Repository) List(ctx context.Context, tenantID, occurrenceID uuid.UUID, status *models.RegistrationStatus) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + registrationFrom + ` WHERE r.tenant_id = $1 AND r.occurrence_id = $2`
	args := []any{tenantID, occurrenceID}
	if status != nil {
		args = append(args, *status)
		q += fmt.Sprintf(` AND r.status = $%d`, len(args))
	}
	q += ` ORDER BY r.created_at, r.seq`
	return collect(ctx, r.pool, q, args...)
}

// Get returns one registration within the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+registrationFrom+` WHERE r.tenant_id = $1 AND r.id = $2`, tenantID, id))
}

// TenantOf returns the tenant owning an occurrence; used by the public endpoints that carry no token.
func (r *Repository) TenantOf(ctx context.Context, occurrenceID uuid.UUID) (uuid.UUID, error) {
	var tenantID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT tenant_id FROM occurrences WHERE id = $1`, occurrenceID).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, occurrences.ErrNotFound
	}
	return tenantID, err
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

func (t *pgTx) Active(ctx context.Context) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + registrationFrom +
		` WHERE r.occurrence_id = $1 AND r.status <> 'cancelled' ORDER BY r.created_at, r.seq`
	return collect(ctx, t.tx, q, t.occ.ID)
}

func (t *pgTx) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(t.tx.QueryRow(ctx, `SELECT `+registrationColumns+registrationFrom+
		` WHERE r.occurrence_id = $1 AND r.id = $2`, t.occ.ID, id))
}

func (t *pgTx) Insert(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (tenant_id, occurrence_id, member_id, guest_name, guest_email, guest_phone,
			party_size, status, waitlist_position, form_responses)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, $9, $10)
		RETURNING id, seq, created_at, updated_at`
	var form []byte
	if len(reg.FormResponses) > 0 {
		form = reg.FormResponses
	}
	err := t.tx.QueryRow(ctx, q, reg.TenantID, reg.OccurrenceID, reg.MemberID, reg.GuestName, reg.GuestEmail, reg.GuestPhone,
		reg.PartySize, reg.Status, reg.WaitlistPosition, form).
		Scan(&reg.ID, &reg.Seq, &reg.CreatedAt, &reg.UpdatedAt)
	if database.IsUniqueViolation(err, memberActiveConstraint) || database.IsUniqueViolation(err, guestActiveConstraint) {
		return ErrDuplicate
	}
	return err
}

func (t *pgTx) SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE registrations SET status = $3, updated_at = NOW() WHERE occurrence_id = $1 AND id = $2`,
		t.occ.ID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetWaitlistPositions(ctx context.Context, positions map[uuid.UUID]*int) error {
	batch := &pgx.Batch{}
	for id, pos := range positions {
		batch.Queue(`UPDATE registrations SET waitlist_position = $3, updated_at = NOW() WHERE occurrence_id = $1 AND id = $2`,
			t.occ.ID, id, pos)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) RefreshCounts(ctx context.Context) (models.Counts, error) {
	return occurrences.RecomputeCounts(ctx, t.tx, t.occ.ID)
}
