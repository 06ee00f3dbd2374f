package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckinMethod is the provenance of an attendance record.
type CheckinMethod string

const (
	CheckinManual    CheckinMethod = "manual"
	CheckinStaffScan CheckinMethod = "staff_scan"
	CheckinSelf      CheckinMethod = "self_checkin"
)

// Valid reports whether m is a known method.
func (m CheckinMethod) Valid() bool {
	switch m {
	case CheckinManual, CheckinStaffScan, CheckinSelf:
		return true
	}
	return false
}

// AttendanceRecord is a check-in tied to an occurrence. Records are only ever created.
type AttendanceRecord struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	OccurrenceID  uuid.UUID     `json:"occurrence_id"`
	MemberID      *uuid.UUID    `json:"member_id,omitempty"`
	GuestName     string        `json:"guest_name,omitempty"`
	CheckinMethod CheckinMethod `json:"checkin_method"`
	CheckedInAt   time.Time     `json:"checked_in_at"`
	CheckedInBy   *uuid.UUID    `json:"checked_in_by,omitempty"`
	Notes         string        `json:"notes,omitempty"`

	MemberName string `json:"member_name,omitempty"`
}

// AttendanceStats summarises check-ins for an occurrence.
type AttendanceStats struct {
	Total       int                   `json:"total"`
	Members     int                   `json:"members"`
	Guests      int                   `json:"guests"`
	ByMethod    map[CheckinMethod]int `json:"by_method"`
	Registered  int                   `json:"registered"`
	CheckInRate float64               `json:"check_in_rate"` // checked-in / registered, 0 when nobody registered
}
