package models

import (
	"time"

	"github.com/google/uuid"
)

// Ministry is a named organizational unit that owns schedules and a team roster.
type Ministry struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamRole is a member's role inside a ministry team.
type TeamRole string

const (
	TeamRoleLeader      TeamRole = "leader"
	TeamRoleCoLeader    TeamRole = "co-leader"
	TeamRoleCoordinator TeamRole = "coordinator"
	TeamRoleMember      TeamRole = "member"
	TeamRoleVolunteer   TeamRole = "volunteer"
)

// Valid reports whether r is a known team role.
func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleLeader, TeamRoleCoLeader, TeamRoleCoordinator, TeamRoleMember, TeamRoleVolunteer:
		return true
	}
	return false
}

// TeamStatus is the roster status of a team member.
type TeamStatus string

const (
	TeamStatusActive   TeamStatus = "active"
	TeamStatusInactive TeamStatus = "inactive"
)

// TeamMember is a member's place on a ministry roster. MemberID is unique per ministry.
type TeamMember struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	MinistryID uuid.UUID  `json:"ministry_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	Role       TeamRole   `json:"role"`
	Status     TeamStatus `json:"status"`
	MemberName string     `json:"member_name,omitempty"`
	Email      string     `json:"email,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
