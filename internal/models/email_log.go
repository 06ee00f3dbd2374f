package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for registrant notifications.
const (
	EmailTypeRegistrationConfirmed  = "registration_confirmed"
	EmailTypeRegistrationWaitlisted = "registration_waitlisted"
	EmailTypeWaitlistPromoted       = "waitlist_promoted"
	EmailTypeOccurrenceCancelled    = "occurrence_cancelled"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records sent notification emails.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	OccurrenceID   *uuid.UUID `json:"occurrence_id,omitempty"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
