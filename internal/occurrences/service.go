// Package occurrences generates dated instances of schedules and drives their lifecycle.
package occurrences

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/notify"
	"github.com/shepherd-hub/backend/internal/recurrence"
	"github.com/shepherd-hub/backend/pkg/validation"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound          = errors.New("occurrence not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrScheduleInactive  = errors.New("schedule is inactive")
)

// Store persists occurrences.
type Store interface {
	// InsertBatch inserts all occurrences in one transaction, skipping existing slots, and returns how many were new.
	InsertBatch(ctx context.Context, occs []models.Occurrence) (int, error)
	List(ctx context.Context, tenantID uuid.UUID, f models.OccurrenceFilter) ([]models.Occurrence, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error)
	Update(ctx context.Context, o *models.Occurrence) error
	// SetStatus moves an occurrence from one status to another; ErrInvalidTransition if it is no longer in from.
	SetStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.OccurrenceStatus, reason *string, at time.Time) error
	ActiveRegistrations(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.Registration, error)
}

// ScheduleLookup loads the schedule an occurrence is generated from.
type ScheduleLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Schedule, error)
}

// Config bounds generation runs.
type Config struct {
	HorizonDays    int
	MaxOccurrences int
}

// Service implements occurrence generation and the status machine.
type Service struct {
	store     Store
	schedules ScheduleLookup
	notifier  notify.Notifier
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates an occurrences service. A nil notifier drops cancellation notices.
func NewService(store Store, schedules ScheduleLookup, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 90
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = 500
	}
	return &Service{store: store, schedules: schedules, notifier: notifier, cfg: cfg, logger: logger, now: time.Now}
}

// GenerateResult reports a generation run.
type GenerateResult struct {
	Created   int    `json:"created"`
	Total     int    `json:"total"` // instances in the window, including ones that already existed
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Generate materializes the schedule's instances in window (nil means today plus the configured horizon).
// Dates that already have an occurrence are left untouched, so running it twice creates nothing the
// second time, even after the schedule's times were edited.
func (s *Service) Generate(ctx context.Context, tenantID, scheduleID uuid.UUID, window *recurrence.Window) (*GenerateResult, error) {
	sc, err := s.schedules.Get(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	if !sc.IsActive {
		return nil, ErrScheduleInactive
	}
	loc, err := time.LoadLocation(sc.Timezone)
	if err != nil {
		return nil, recurrence.ErrInvalidTimezone
	}
	w := recurrence.DefaultWindow(s.now(), s.cfg.HorizonDays, loc)
	if window != nil {
		w = *window
	}
	instances, err := recurrence.Expand(recurrence.Pattern{
		StartDate: sc.StartDate,
		EndDate:   sc.EndDate,
		StartTime: sc.StartTime,
		EndTime:   sc.EndTime,
		Timezone:  sc.Timezone,
		Rule:      sc.RecurrenceRule,
	}, w, s.cfg.MaxOccurrences)
	if err != nil {
		return nil, err
	}

	var location *string
	if sc.Location != "" {
		l := sc.Location
		location = &l
	}
	occs := make([]models.Occurrence, 0, len(instances))
	for _, in := range instances {
		occs = append(occs, models.Occurrence{
			TenantID:       tenantID,
			ScheduleID:     sc.ID,
			MinistryID:     sc.MinistryID,
			OccurrenceDate: in.Date,
			StartAt:        in.StartAt,
			EndAt:          in.EndAt,
			Location:       location,
			Status:         models.OccurrenceScheduled,
			Capacity:       sc.Capacity,
		})
	}
	created := 0
	if len(occs) > 0 {
		created, err = s.store.InsertBatch(ctx, occs)
		if err != nil {
			return nil, err
		}
	}
	s.logger.Info("occurrences generated",
		zap.String("schedule_id", sc.ID.String()),
		zap.Int("created", created),
		zap.Int("total", len(occs)),
	)
	return &GenerateResult{
		Created:   created,
		Total:     len(occs),
		StartDate: w.From.Format(dateLayout),
		EndDate:   w.To.Format(dateLayout),
	}, nil
}

// List returns occurrences matching f ordered by start time.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f models.OccurrenceFilter) ([]models.Occurrence, error) {
	return s.store.List(ctx, tenantID, f)
}

// Get returns one occurrence.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error) {
	return s.store.Get(ctx, tenantID, id)
}

// UpdateInput edits an occurrence. A status change goes through the same rules as Transition.
// Cancelling is left to Cancel, which is admin only and notifies registrants.
type UpdateInput struct {
	Location *string                  `json:"location" binding:"omitempty,max=255"`
	Capacity *int                     `json:"capacity" binding:"omitempty,min=0"`
	Notes    *string                  `json:"notes"`
	Status   *models.OccurrenceStatus `json:"status" binding:"omitempty,oneof=scheduled in_progress completed"`
}

// Update applies in and returns the stored occurrence.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (*models.Occurrence, error) {
	o, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil && *in.Status == models.OccurrenceCancelled {
		return nil, validation.NewError("status", "must be one of: scheduled in_progress completed")
	}
	if in.Status != nil && *in.Status != o.Status {
		if _, err := s.Transition(ctx, tenantID, id, *in.Status, ""); err != nil {
			return nil, err
		}
	}
	if in.Location == nil && in.Capacity == nil && in.Notes == nil {
		return s.store.Get(ctx, tenantID, id)
	}
	if in.Location != nil {
		if l := strings.TrimSpace(*in.Location); l == "" {
			o.Location = nil
		} else {
			o.Location = &l
		}
	}
	if in.Capacity != nil {
		o.Capacity = in.Capacity
	}
	if in.Notes != nil {
		o.Notes = *in.Notes
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, tenantID, id)
}

// Transition moves an occurrence to status to. Moving to cancelled requires a reason.
func (s *Service) Transition(ctx context.Context, tenantID, id uuid.UUID, to models.OccurrenceStatus, reason string) (*models.Occurrence, error) {
	if to == models.OccurrenceCancelled {
		return s.Cancel(ctx, tenantID, id, reason)
	}
	o, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.SetStatus(ctx, tenantID, id, o.Status, to, nil, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("occurrence status changed",
		zap.String("occurrence_id", id.String()),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)
	return s.store.Get(ctx, tenantID, id)
}

// Cancel cancels a scheduled occurrence and notifies everyone still registered.
// Registrations keep their status so the history of who was coming survives.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, reason string) (*models.Occurrence, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	o, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, models.OccurrenceCancelled) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.SetStatus(ctx, tenantID, id, o.Status, models.OccurrenceCancelled, &reason, s.now()); err != nil {
		return nil, err
	}
	o, err = s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	regs, err := s.store.ActiveRegistrations(ctx, tenantID, id)
	if err != nil {
		s.logger.Error("load registrants for cancellation notice failed", zap.Error(err), zap.String("occurrence_id", id.String()))
		return o, nil
	}
	for i := range regs {
		if regs[i].ContactEmail() == "" {
			continue
		}
		ev := notify.Event{
			Type:         models.EmailTypeOccurrenceCancelled,
			TenantID:     tenantID,
			Occurrence:   o,
			Registration: &regs[i],
			Reason:       reason,
		}
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.Warn("queue cancellation notice failed", zap.Error(err), zap.String("registration_id", regs[i].ID.String()))
		}
	}
	s.logger.Info("occurrence cancelled", zap.String("occurrence_id", id.String()), zap.Int("notified", len(regs)))
	return o, nil
}
