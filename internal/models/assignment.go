package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus is a team member's commitment for one occurrence.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentTentative AssignmentStatus = "tentative"
	AssignmentDeclined  AssignmentStatus = "declined"
)

// Valid reports whether s is a known status.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentConfirmed, AssignmentTentative, AssignmentDeclined:
		return true
	}
	return false
}

// TeamAssignment commits a ministry roster member to work an occurrence.
type TeamAssignment struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenant_id"`
	OccurrenceID uuid.UUID        `json:"occurrence_id"`
	MemberID     uuid.UUID        `json:"member_id"`
	Role         TeamRole         `json:"role"`
	Status       AssignmentStatus `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	MemberName string `json:"member_name,omitempty"`
}
