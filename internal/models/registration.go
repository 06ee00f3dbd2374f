package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the state of a registration.
type RegistrationStatus string

const (
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationConfirmed, RegistrationWaitlisted, RegistrationCancelled:
		return true
	}
	return false
}

// Registration is a member's or guest's request to attend an occurrence.
// Exactly one of MemberID or GuestName is set.
type Registration struct {
	ID               uuid.UUID          `json:"id"`
	TenantID         uuid.UUID          `json:"tenant_id"`
	OccurrenceID     uuid.UUID          `json:"occurrence_id"`
	MemberID         *uuid.UUID         `json:"member_id,omitempty"`
	GuestName        string             `json:"guest_name,omitempty"`
	GuestEmail       string             `json:"guest_email,omitempty"`
	GuestPhone       string             `json:"guest_phone,omitempty"`
	PartySize        int                `json:"party_size"`
	Status           RegistrationStatus `json:"status"`
	WaitlistPosition *int               `json:"waitlist_position,omitempty"`
	FormResponses    json.RawMessage    `json:"form_responses,omitempty"`
	Seq              int64              `json:"-"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	MemberName  string `json:"member_name,omitempty"`
	MemberEmail string `json:"member_email,omitempty"`
}

// DisplayName returns the member name or guest name.
func (r *Registration) DisplayName() string {
	if r.MemberID != nil {
		return r.MemberName
	}
	return r.GuestName
}

// ContactEmail returns the address notifications should go to, if any.
func (r *Registration) ContactEmail() string {
	if r.MemberID != nil {
		return r.MemberEmail
	}
	return r.GuestEmail
}
