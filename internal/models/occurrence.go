package models

import (
	"time"

	"github.com/google/uuid"
)

// OccurrenceStatus is the lifecycle state of an occurrence.
type OccurrenceStatus string

const (
	OccurrenceScheduled  OccurrenceStatus = "scheduled"
	OccurrenceInProgress OccurrenceStatus = "in_progress"
	OccurrenceCompleted  OccurrenceStatus = "completed"
	OccurrenceCancelled  OccurrenceStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OccurrenceStatus) Valid() bool {
	switch s {
	case OccurrenceScheduled, OccurrenceInProgress, OccurrenceCompleted, OccurrenceCancelled:
		return true
	}
	return false
}

// Occurrence is one dated instance of a schedule.
type Occurrence struct {
	ID                 uuid.UUID        `json:"id"`
	TenantID           uuid.UUID        `json:"tenant_id"`
	ScheduleID         uuid.UUID        `json:"schedule_id"`
	MinistryID         uuid.UUID        `json:"ministry_id"`
	OccurrenceDate     time.Time        `json:"occurrence_date"`
	StartAt            time.Time        `json:"start_at"`
	EndAt              time.Time        `json:"end_at"`
	Location           *string          `json:"location,omitempty"`
	Status             OccurrenceStatus `json:"status"`
	Capacity           *int             `json:"capacity,omitempty"`
	RegisteredCount    int              `json:"registered_count"`
	WaitlistCount      int              `json:"waitlist_count"`
	CheckedInCount     int              `json:"checked_in_count"`
	CancellationReason *string          `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`

	ScheduleName string `json:"schedule_name,omitempty"`
	MinistryName string `json:"ministry_name,omitempty"`
}

// Counts is the aggregate snapshot published to live clients.
type Counts struct {
	OccurrenceID uuid.UUID `json:"occurrence_id"`
	Registered   int       `json:"registered"`
	Waitlisted   int       `json:"waitlisted"`
	CheckedIn    int       `json:"checked_in"`
}

// Counts returns the aggregate counters of o.
func (o *Occurrence) Counts() Counts {
	return Counts{
		OccurrenceID: o.ID,
		Registered:   o.RegisteredCount,
		Waitlisted:   o.WaitlistCount,
		CheckedIn:    o.CheckedInCount,
	}
}

// OccurrenceFilter narrows occurrence listings.
type OccurrenceFilter struct {
	Status     *OccurrenceStatus
	MinistryID *uuid.UUID
	ScheduleID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
}
