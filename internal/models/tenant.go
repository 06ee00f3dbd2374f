package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one congregation / community partition. Every other entity carries its id.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantOverview is one row of the super-admin tenant overview.
type TenantOverview struct {
	Tenant
	Ministries          int `json:"ministries"`
	ActiveSchedules     int `json:"active_schedules"`
	UpcomingOccurrences int `json:"upcoming_occurrences"`
	RecentRegistrations int `json:"recent_registrations"`
	RecentCheckIns      int `json:"recent_check_ins"`
}
