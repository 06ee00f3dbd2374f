package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shepherd-hub/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record implements LogStore.
func (r *Repository) Record(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (tenant_id, occurrence_id, registration_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.TenantID, l.OccurrenceID, l.RegistrationID, l.EmailType, l.RecipientEmail,
		l.Subject, l.Status, l.SentAt, l.ErrorMessage).Scan(&l.ID, &l.CreatedAt)
}

// ListByOccurrence returns email logs for an occurrence, newest first.
func (r *Repository) ListByOccurrence(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.EmailLog, error) {
	const q = `SELECT id, tenant_id, occurrence_id, registration_id, email_type, recipient_email,
			COALESCE(subject, ''), status, sent_at, COALESCE(error_message, ''), created_at
		FROM email_logs
		WHERE tenant_id = $1 AND occurrence_id = $2
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EmailLog, error) {
		var el models.EmailLog
		err := row.Scan(&el.ID, &el.TenantID, &el.OccurrenceID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail,
			&el.Subject, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt)
		return el, err
	})
}
