package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldType is the input type of a registration form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldTextarea FieldType = "textarea"
)

// FormField is one admin-defined field of a schedule's registration form.
type FormField struct {
	ID          string    `json:"id"` // key for storing the response
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"` // select only
	HelpText    string    `json:"help_text,omitempty"`
}

// LocationType describes where a schedule meets.
type LocationType string

const (
	LocationPhysical LocationType = "physical"
	LocationVirtual  LocationType = "virtual"
	LocationHybrid   LocationType = "hybrid"
)

// Schedule is a recurring event template owned by a ministry.
type Schedule struct {
	ID                   uuid.UUID    `json:"id"`
	TenantID             uuid.UUID    `json:"tenant_id"`
	MinistryID           uuid.UUID    `json:"ministry_id"`
	Name                 string       `json:"name"`
	Description          string       `json:"description,omitempty"`
	ScheduleType         string       `json:"schedule_type"` // service, bible_study, rehearsal, seminar, ...
	StartDate            time.Time    `json:"start_date"`
	EndDate              *time.Time   `json:"end_date,omitempty"`
	StartTime            string       `json:"start_time"` // HH:MM
	EndTime              string       `json:"end_time"`   // HH:MM
	Timezone             string       `json:"timezone"`
	RecurrenceRule       string       `json:"recurrence_rule,omitempty"` // RFC 5545 RRULE body; empty = one-off
	Location             string       `json:"location,omitempty"`
	LocationType         LocationType `json:"location_type"`
	VirtualMeetingURL    string       `json:"virtual_meeting_url,omitempty"`
	Capacity             *int         `json:"capacity,omitempty"` // nil = unlimited
	RegistrationRequired bool         `json:"registration_required"`
	FormSchema           []FormField  `json:"form_schema"`
	CoverPhotoURL        string       `json:"cover_photo_url,omitempty"`
	CoverPhotoKey        string       `json:"-"`
	IsActive             bool         `json:"is_active"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`

	MinistryName string `json:"ministry_name,omitempty"`
}

// QRPurpose scopes a schedule QR token.
type QRPurpose string

const (
	QRPurposeAttendance   QRPurpose = "attendance"
	QRPurposeRegistration QRPurpose = "registration"
)

// ScheduleQRToken is a signed, expiring token printed as a QR code for a schedule.
type ScheduleQRToken struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	Purpose    QRPurpose `json:"purpose"`
	Token      string    `json:"token"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
