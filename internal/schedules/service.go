// Package schedules manages recurring event templates, their QR tokens and cover photos.
package schedules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/formschema"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/internal/recurrence"
	"github.com/shepherd-hub/backend/pkg/validation"
)

var (
	ErrNotFound           = errors.New("schedule not found")
	ErrQRNotFound         = errors.New("no active qr code for this schedule")
	ErrNoUpcoming         = errors.New("schedule has no upcoming occurrence")
	ErrStorageUnavailable = errors.New("media storage is not configured")
)

const dateLayout = "2006-01-02"

// Input is the create/update payload for a schedule.
type Input struct {
	MinistryID           uuid.UUID           `json:"ministry_id" binding:"required"`
	Name                 string              `json:"name" binding:"required,max=255"`
	Description          string              `json:"description"`
	ScheduleType         string              `json:"schedule_type" binding:"required,max=50"`
	StartDate            string              `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate              string              `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	StartTime            string              `json:"start_time" binding:"required,timeofday"`
	EndTime              string              `json:"end_time" binding:"required,timeofday"`
	Timezone             string              `json:"timezone" binding:"required,timezone"`
	RecurrenceRule       string              `json:"recurrence_rule" binding:"rrule"`
	Location             string              `json:"location" binding:"max=255"`
	LocationType         models.LocationType `json:"location_type" binding:"omitempty,oneof=physical virtual hybrid"`
	VirtualMeetingURL    string              `json:"virtual_meeting_url" binding:"omitempty,url"`
	Capacity             *int                `json:"capacity" binding:"omitempty,min=0"`
	RegistrationRequired bool                `json:"registration_required"`
	FormSchema           []models.FormField  `json:"form_schema"`
	FormTemplate         string              `json:"form_template"` // appended to form_schema when set
	IsActive             *bool               `json:"is_active"`
}

// ListFilter narrows List.
type ListFilter struct {
	MinistryID *uuid.UUID
	Active     *bool
}

// Store persists schedules and their QR tokens.
type Store interface {
	List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Schedule, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Schedule, error)
	Create(ctx context.Context, s *models.Schedule) error
	Update(ctx context.Context, s *models.Schedule) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	SetCoverPhoto(ctx context.Context, tenantID, id uuid.UUID, url, key string) error
	InsertQRToken(ctx context.Context, t *models.ScheduleQRToken) error
	LatestQRToken(ctx context.Context, tenantID, scheduleID uuid.UUID, purpose models.QRPurpose, now time.Time) (*models.ScheduleQRToken, error)
	NextOccurrence(ctx context.Context, tenantID, scheduleID uuid.UUID, after time.Time) (*models.Occurrence, error)
}

// MinistryLookup confirms a ministry exists in the tenant.
type MinistryLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Ministry, error)
}

// MediaStore is the object storage used for cover photos.
type MediaStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// Config tunes QR token issuing.
type Config struct {
	DefaultQRExpiryHours int
	PublicBaseURL        string
}

// Service applies schedule rules on top of a Store.
type Service struct {
	store      Store
	ministries MinistryLookup
	tokens     *qrtoken.Service
	media      MediaStore
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a schedules service. media may be nil when storage is not configured.
func NewService(store Store, ministries MinistryLookup, tokens *qrtoken.Service, media MediaStore, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultQRExpiryHours <= 0 {
		cfg.DefaultQRExpiryHours = 24
	}
	return &Service{store: store, ministries: ministries, tokens: tokens, media: media, cfg: cfg, logger: logger, now: time.Now}
}

// List returns schedules, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Schedule, error) {
	return s.store.List(ctx, tenantID, f)
}

// Get returns one schedule.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Schedule, error) {
	return s.store.Get(ctx, tenantID, id)
}

// apply validates in and copies it onto sc.
func (s *Service) apply(ctx context.Context, tenantID uuid.UUID, sc *models.Schedule, in Input) error {
	if _, err := s.ministries.Get(ctx, tenantID, in.MinistryID); err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, in.StartDate)
	if err != nil {
		return validation.NewError("start_date", "must be a date (YYYY-MM-DD)")
	}
	var end *time.Time
	if in.EndDate != "" {
		e, err := time.Parse(dateLayout, in.EndDate)
		if err != nil {
			return validation.NewError("end_date", "must be a date (YYYY-MM-DD)")
		}
		if e.Before(start) {
			return validation.NewError("end_date", "must not be before start_date")
		}
		end = &e
	}
	if err := recurrence.ValidateRule(in.RecurrenceRule); err != nil {
		return validation.NewError("recurrence_rule", "must be a valid recurrence rule")
	}
	form := formschema.NewBuilder(in.FormSchema)
	form.FillIDs()
	if in.FormTemplate != "" {
		if err := form.ApplyTemplate(in.FormTemplate); err != nil {
			return validation.NewError("form_template", "must be one of: "+templateNames())
		}
	}
	fields := form.Fields()
	if errs := formschema.ValidateSchema(fields); errs != nil {
		return &validation.Error{Fields: errs}
	}
	locType := in.LocationType
	if locType == "" {
		locType = models.LocationPhysical
	}

	sc.TenantID = tenantID
	sc.MinistryID = in.MinistryID
	sc.Name = strings.TrimSpace(in.Name)
	sc.Description = in.Description
	sc.ScheduleType = in.ScheduleType
	sc.StartDate = start
	sc.EndDate = end
	sc.StartTime = in.StartTime
	sc.EndTime = in.EndTime
	sc.Timezone = in.Timezone
	sc.RecurrenceRule = strings.TrimSpace(in.RecurrenceRule)
	sc.Location = in.Location
	sc.LocationType = locType
	sc.VirtualMeetingURL = in.VirtualMeetingURL
	sc.Capacity = in.Capacity
	sc.RegistrationRequired = in.RegistrationRequired
	sc.FormSchema = fields
	if in.IsActive != nil {
		sc.IsActive = *in.IsActive
	}
	return nil
}

func templateNames() string {
	names := formschema.Templates()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, " ")
}

// Create adds a schedule. Occurrences are generated separately.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in Input) (*models.Schedule, error) {
	sc := &models.Schedule{IsActive: true}
	if err := s.apply(ctx, tenantID, sc, in); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sc); err != nil {
		return nil, err
	}
	s.logger.Info("schedule created", zap.String("schedule_id", sc.ID.String()), zap.String("ministry_id", sc.MinistryID.String()))
	return sc, nil
}

// Update edits a schedule. Already generated occurrences keep their own location and capacity.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, in Input) (*models.Schedule, error) {
	sc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, tenantID, sc, in); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Delete removes a schedule with its occurrences, and its cover photo when storage is available.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	sc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	if sc.CoverPhotoKey != "" && s.media != nil {
		if err := s.media.Delete(ctx, sc.CoverPhotoKey); err != nil {
			s.logger.Warn("delete cover photo failed", zap.Error(err), zap.String("key", sc.CoverPhotoKey))
		}
	}
	s.logger.Info("schedule deleted", zap.String("schedule_id", id.String()))
	return nil
}

func (s *Service) qrURL(purpose models.QRPurpose, token string) string {
	path := "/checkin"
	if purpose == models.QRPurposeRegistration {
		path = "/register"
	}
	return fmt.Sprintf("%s%s?token=%s", s.cfg.PublicBaseURL, path, token)
}

// IssueQR mints and stores a QR token for the schedule. hours of zero uses the configured default.
func (s *Service) IssueQR(ctx context.Context, tenantID, scheduleID uuid.UUID, purpose models.QRPurpose, hours int) (*models.ScheduleQRToken, error) {
	ttl, err := qrtoken.TTL(hours, s.cfg.DefaultQRExpiryHours)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, tenantID, scheduleID); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(tenantID, scheduleID, purpose, ttl)
	if err != nil {
		return nil, err
	}
	t := &models.ScheduleQRToken{
		TenantID:   tenantID,
		ScheduleID: scheduleID,
		Purpose:    purpose,
		Token:      token,
		ExpiresAt:  expiresAt,
	}
	if err := s.store.InsertQRToken(ctx, t); err != nil {
		return nil, err
	}
	t.URL = s.qrURL(purpose, token)
	return t, nil
}

// LatestQR returns the newest unexpired token for the schedule.
func (s *Service) LatestQR(ctx context.Context, tenantID, scheduleID uuid.UUID, purpose models.QRPurpose) (*models.ScheduleQRToken, error) {
	if _, err := s.store.Get(ctx, tenantID, scheduleID); err != nil {
		return nil, err
	}
	t, err := s.store.LatestQRToken(ctx, tenantID, scheduleID, purpose, s.now())
	if err != nil {
		return nil, err
	}
	t.URL = s.qrURL(purpose, t.Token)
	return t, nil
}

// RegistrationTarget is where a registration QR code leads.
type RegistrationTarget struct {
	Schedule   *models.Schedule   `json:"schedule"`
	Occurrence *models.Occurrence `json:"occurrence"`
}

// ResolveRegistrationQR verifies a registration token and finds the schedule's next open occurrence.
func (s *Service) ResolveRegistrationQR(ctx context.Context, token string) (*RegistrationTarget, error) {
	claims, err := s.tokens.Verify(token, models.QRPurposeRegistration)
	if err != nil {
		return nil, err
	}
	sc, err := s.store.Get(ctx, claims.TenantID, claims.ScheduleID)
	if err != nil {
		return nil, err
	}
	occ, err := s.store.NextOccurrence(ctx, claims.TenantID, claims.ScheduleID, s.now())
	if err != nil {
		return nil, err
	}
	return &RegistrationTarget{Schedule: sc, Occurrence: occ}, nil
}
