// Package assignments commits ministry team members to work individual occurrences.
package assignments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/validation"
)

var (
	ErrNotFound        = errors.New("team assignment not found")
	ErrAlreadyAssigned = errors.New("member is already assigned to this occurrence")
)

// Store persists assignments.
type Store interface {
	List(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.TeamAssignment, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.TeamAssignment, error)
	Create(ctx context.Context, a *models.TeamAssignment) error
	Update(ctx context.Context, a *models.TeamAssignment) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// OccurrenceLookup resolves the ministry an occurrence belongs to.
type OccurrenceLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error)
}

// RosterLookup lists who is on a ministry's team.
type RosterLookup interface {
	RosterMemberIDs(ctx context.Context, tenantID, ministryID uuid.UUID) ([]uuid.UUID, error)
}

// Service applies assignment rules.
type Service struct {
	store       Store
	occurrences OccurrenceLookup
	roster      RosterLookup
	logger      *zap.Logger
}

// NewService creates an assignments service.
func NewService(store Store, occurrences OccurrenceLookup, roster RosterLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, occurrences: occurrences, roster: roster, logger: logger}
}

// CreateInput assigns one roster member.
type CreateInput struct {
	MemberID uuid.UUID               `json:"member_id" binding:"required"`
	Role     models.TeamRole         `json:"role" binding:"omitempty,oneof=leader co-leader coordinator member volunteer"`
	Status   models.AssignmentStatus `json:"status" binding:"omitempty,oneof=pending confirmed tentative declined"`
	Notes    string                  `json:"notes" binding:"max=1000"`
}

// UpdateInput changes an assignment's status and notes; membership is untouched.
type UpdateInput struct {
	Status *models.AssignmentStatus `json:"status" binding:"omitempty,oneof=pending confirmed tentative declined"`
	Role   *models.TeamRole         `json:"role" binding:"omitempty,oneof=leader co-leader coordinator member volunteer"`
	Notes  *string                  `json:"notes" binding:"omitempty,max=1000"`
}

// SyncInput is the full selection of members who should work the occurrence.
type SyncInput struct {
	MemberIDs []uuid.UUID     `json:"member_ids" binding:"required"`
	Role      models.TeamRole `json:"role" binding:"omitempty,oneof=leader co-leader coordinator member volunteer"`
}

// SyncFailure reports one create or delete that did not go through.
type SyncFailure struct {
	MemberID uuid.UUID `json:"member_id"`
	Op       string    `json:"op"`
	Error    string    `json:"error"`
}

// SyncResult is the delta applied plus the assignments as they stand afterwards.
type SyncResult struct {
	Added       []models.TeamAssignment `json:"added"`
	Removed     []uuid.UUID             `json:"removed"`
	Failed      []SyncFailure           `json:"failed,omitempty"`
	Assignments []models.TeamAssignment `json:"assignments"`
}

// List returns the occurrence's assignments.
func (s *Service) List(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.TeamAssignment, error) {
	if _, err := s.occurrences.Get(ctx, tenantID, occurrenceID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, tenantID, occurrenceID)
}

// Diff compares the current assignments with the selection. add keeps the selection's order and
// drops repeats; remove keeps the order of current.
func Diff(current []models.TeamAssignment, selected []uuid.UUID) (add []uuid.UUID, remove []models.TeamAssignment) {
	want := make(map[uuid.UUID]bool, len(selected))
	have := make(map[uuid.UUID]bool, len(current))
	for _, a := range current {
		have[a.MemberID] = true
	}
	for _, id := range selected {
		if want[id] {
			continue
		}
		want[id] = true
		if !have[id] {
			add = append(add, id)
		}
	}
	for _, a := range current {
		if !want[a.MemberID] {
			remove = append(remove, a)
		}
	}
	return add, remove
}

// checkRoster returns a validation error naming every id that is not on the ministry's team.
func (s *Service) checkRoster(ctx context.Context, tenantID uuid.UUID, occ *models.Occurrence, ids []uuid.UUID, field string) error {
	roster, err := s.roster.RosterMemberIDs(ctx, tenantID, occ.MinistryID)
	if err != nil {
		return err
	}
	on := make(map[uuid.UUID]bool, len(roster))
	for _, id := range roster {
		on[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !on[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return validation.NewError(field, "not on the ministry team: "+strings.Join(missing, ", "))
	}
	return nil
}

// Create assigns one roster member. Role defaults to member and status to pending.
func (s *Service) Create(ctx context.Context, tenantID, occurrenceID uuid.UUID, in CreateInput) (*models.TeamAssignment, error) {
	occ, err := s.occurrences.Get(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRoster(ctx, tenantID, occ, []uuid.UUID{in.MemberID}, "member_id"); err != nil {
		return nil, err
	}
	a := newAssignment(tenantID, occurrenceID, in)
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func newAssignment(tenantID, occurrenceID uuid.UUID, in CreateInput) *models.TeamAssignment {
	a := &models.TeamAssignment{
		TenantID:     tenantID,
		OccurrenceID: occurrenceID,
		MemberID:     in.MemberID,
		Role:         in.Role,
		Status:       in.Status,
		Notes:        strings.TrimSpace(in.Notes),
	}
	if a.Role == "" {
		a.Role = models.TeamRoleMember
	}
	if a.Status == "" {
		a.Status = models.AssignmentPending
	}
	return a
}

// Sync makes the occurrence's assignees equal to the selection: one create per newly selected member and
// one delete per deselected one. It is not transactional; each step is attempted, failures are reported in
// the result, and Assignments is re-read so the caller sees the state that was actually reached.
// Statuses of assignments that stay are not touched.
func (s *Service) Sync(ctx context.Context, tenantID, occurrenceID uuid.UUID, in SyncInput) (*SyncResult, error) {
	occ, err := s.occurrences.Get(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.List(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	add, remove := Diff(current, in.MemberIDs)
	if err := s.checkRoster(ctx, tenantID, occ, add, "member_ids"); err != nil {
		return nil, err
	}

	res := &SyncResult{Added: []models.TeamAssignment{}, Removed: []uuid.UUID{}}
	for _, memberID := range add {
		a := newAssignment(tenantID, occurrenceID, CreateInput{MemberID: memberID, Role: in.Role})
		if err := s.store.Create(ctx, a); err != nil {
			s.logger.Warn("assignment create failed", zap.Error(err), zap.String("member_id", memberID.String()))
			res.Failed = append(res.Failed, SyncFailure{MemberID: memberID, Op: "create", Error: err.Error()})
			continue
		}
		res.Added = append(res.Added, *a)
	}
	for _, a := range remove {
		if err := s.store.Delete(ctx, tenantID, a.ID); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("assignment delete failed", zap.Error(err), zap.String("member_id", a.MemberID.String()))
			res.Failed = append(res.Failed, SyncFailure{MemberID: a.MemberID, Op: "delete", Error: err.Error()})
			continue
		}
		res.Removed = append(res.Removed, a.ID)
	}

	if res.Assignments, err = s.store.List(ctx, tenantID, occurrenceID); err != nil {
		return nil, err
	}
	s.logger.Info("team assignments synced",
		zap.String("occurrence_id", occurrenceID.String()),
		zap.Int("added", len(res.Added)),
		zap.Int("removed", len(res.Removed)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func (s *Service) get(ctx context.Context, tenantID, occurrenceID, id uuid.UUID) (*models.TeamAssignment, error) {
	a, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if a.OccurrenceID != occurrenceID {
		return nil, ErrNotFound
	}
	return a, nil
}

// Update changes status, role or notes of one assignment.
func (s *Service) Update(ctx context.Context, tenantID, occurrenceID, id uuid.UUID, in UpdateInput) (*models.TeamAssignment, error) {
	a, err := s.get(ctx, tenantID, occurrenceID, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, validation.NewError("status", "must be pending, confirmed, tentative or declined")
		}
		a.Status = *in.Status
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, validation.NewError("role", "is not a team role")
		}
		a.Role = *in.Role
	}
	if in.Notes != nil {
		a.Notes = strings.TrimSpace(*in.Notes)
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes one assignment.
func (s *Service) Delete(ctx context.Context, tenantID, occurrenceID, id uuid.UUID) error {
	if _, err := s.get(ctx, tenantID, occurrenceID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, tenantID, id)
}
