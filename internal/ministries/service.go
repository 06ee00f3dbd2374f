// Package ministries manages the tenant's ministries: named units that own schedules and team rosters.
package ministries

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("ministry not found")
	ErrDuplicateCode = errors.New("A ministry with this code already exists")
	ErrCodeImmutable = errors.New("ministry code cannot be changed")
)

// Input is the create/update payload shared by the REST handler and the action dispatcher.
type Input struct {
	Name        string `json:"name" binding:"required,max=255"`
	Code        string `json:"code" binding:"required,max=50,ministrycode"`
	Description string `json:"description"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
	Icon        string `json:"icon" binding:"max=50"`
	IsActive    *bool  `json:"is_active"`
}

// ListFilter narrows List.
type ListFilter struct {
	Active *bool
	Search string
}

// Store persists ministries. Implementations scope every call by tenant.
type Store interface {
	List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Ministry, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Ministry, error)
	Create(ctx context.Context, m *models.Ministry) error
	Update(ctx context.Context, m *models.Ministry) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// Service applies ministry rules on top of a Store.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a ministries service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// List returns the tenant's ministries ordered by name.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Ministry, error) {
	return s.store.List(ctx, tenantID, f)
}

// Get returns one ministry.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Ministry, error) {
	return s.store.Get(ctx, tenantID, id)
}

// Create adds a ministry. Codes are stored upper-cased and are unique per tenant.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in Input) (*models.Ministry, error) {
	m := &models.Ministry{
		TenantID:    tenantID,
		Name:        strings.TrimSpace(in.Name),
		Code:        normalizeCode(in.Code),
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("ministry created", zap.String("ministry_id", m.ID.String()), zap.String("code", m.Code))
	return m, nil
}

// Update edits a ministry. The code may be resent unchanged but never altered.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, in Input) (*models.Ministry, error) {
	m, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if code := normalizeCode(in.Code); code != "" && code != m.Code {
		return nil, ErrCodeImmutable
	}
	m.Name = strings.TrimSpace(in.Name)
	m.Description = in.Description
	m.Color = in.Color
	m.Icon = in.Icon
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a ministry; schedules, occurrences and roster rows cascade in the database.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("ministry deleted", zap.String("ministry_id", id.String()))
	return nil
}
