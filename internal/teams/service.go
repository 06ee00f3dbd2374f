// Package teams manages ministry team rosters.
package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
)

var (
	ErrNotOnTeam     = errors.New("member is not on this team")
	ErrAlreadyOnTeam = errors.New("member is already on this team")
	ErrInvalidRole   = errors.New("invalid team role")
	ErrInvalidStatus = errors.New("invalid team status")
)

// SaveInput adds a member to a roster or changes their role and status.
type SaveInput struct {
	MemberID uuid.UUID         `json:"member_id" binding:"required"`
	Role     models.TeamRole   `json:"role"`
	Status   models.TeamStatus `json:"status"`
}

// UpdateInput changes role and/or status of an existing roster entry.
type UpdateInput struct {
	Role   *models.TeamRole   `json:"role"`
	Status *models.TeamStatus `json:"status"`
}

// Store persists roster rows.
type Store interface {
	List(ctx context.Context, tenantID, ministryID uuid.UUID) ([]models.TeamMember, error)
	Get(ctx context.Context, tenantID, ministryID, memberID uuid.UUID) (*models.TeamMember, error)
	Add(ctx context.Context, tm *models.TeamMember) error
	Update(ctx context.Context, tm *models.TeamMember) error
	Remove(ctx context.Context, tenantID, ministryID, memberID uuid.UUID) error
}

// MinistryLookup confirms the ministry exists in the tenant.
type MinistryLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Ministry, error)
}

// MemberLookup confirms the member exists in the tenant.
type MemberLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Member, error)
}

// Service applies roster rules.
type Service struct {
	store      Store
	ministries MinistryLookup
	members    MemberLookup
	logger     *zap.Logger
}

// NewService creates a teams service.
func NewService(store Store, ministries MinistryLookup, members MemberLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, ministries: ministries, members: members, logger: logger}
}

func validate(role models.TeamRole, status models.TeamStatus) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if status != models.TeamStatusActive && status != models.TeamStatusInactive {
		return ErrInvalidStatus
	}
	return nil
}

// List returns the roster of a ministry.
func (s *Service) List(ctx context.Context, tenantID, ministryID uuid.UUID) ([]models.TeamMember, error) {
	if _, err := s.ministries.Get(ctx, tenantID, ministryID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, tenantID, ministryID)
}

// Add puts a member on the roster. Role defaults to member and status to active.
func (s *Service) Add(ctx context.Context, tenantID, ministryID uuid.UUID, in SaveInput) (*models.TeamMember, error) {
	if in.Role == "" {
		in.Role = models.TeamRoleMember
	}
	if in.Status == "" {
		in.Status = models.TeamStatusActive
	}
	if err := validate(in.Role, in.Status); err != nil {
		return nil, err
	}
	if _, err := s.ministries.Get(ctx, tenantID, ministryID); err != nil {
		return nil, err
	}
	member, err := s.members.Get(ctx, tenantID, in.MemberID)
	if err != nil {
		return nil, err
	}
	tm := &models.TeamMember{
		TenantID:   tenantID,
		MinistryID: ministryID,
		MemberID:   in.MemberID,
		Role:       in.Role,
		Status:     in.Status,
		MemberName: member.FullName(),
		Email:      member.Email,
	}
	if err := s.store.Add(ctx, tm); err != nil {
		return nil, err
	}
	s.logger.Info("team member added", zap.String("ministry_id", ministryID.String()), zap.String("member_id", in.MemberID.String()))
	return tm, nil
}

// Update changes role and/or status of a roster entry.
func (s *Service) Update(ctx context.Context, tenantID, ministryID, memberID uuid.UUID, in UpdateInput) (*models.TeamMember, error) {
	tm, err := s.store.Get(ctx, tenantID, ministryID, memberID)
	if err != nil {
		return nil, err
	}
	if in.Role != nil {
		tm.Role = *in.Role
	}
	if in.Status != nil {
		tm.Status = *in.Status
	}
	if err := validate(tm.Role, tm.Status); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, tm); err != nil {
		return nil, err
	}
	return tm, nil
}

// Save adds the member or, when already on the roster, updates them.
func (s *Service) Save(ctx context.Context, tenantID, ministryID uuid.UUID, in SaveInput) (*models.TeamMember, bool, error) {
	_, err := s.store.Get(ctx, tenantID, ministryID, in.MemberID)
	switch {
	case errors.Is(err, ErrNotOnTeam):
		tm, err := s.Add(ctx, tenantID, ministryID, in)
		return tm, true, err
	case err != nil:
		return nil, false, err
	}
	upd := UpdateInput{}
	if in.Role != "" {
		upd.Role = &in.Role
	}
	if in.Status != "" {
		upd.Status = &in.Status
	}
	tm, err := s.Update(ctx, tenantID, ministryID, in.MemberID, upd)
	return tm, false, err
}

// Remove takes a member off the roster. Existing occurrence assignments are left alone.
func (s *Service) Remove(ctx context.Context, tenantID, ministryID, memberID uuid.UUID) error {
	return s.store.Remove(ctx, tenantID, ministryID, memberID)
}
