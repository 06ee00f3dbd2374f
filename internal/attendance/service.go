// Package attendance records check-ins: manual and staff-scanned ones by staff, and self check-in through a schedule's QR code.
package attendance

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/pkg/utils"
	"github.com/shepherd-hub/backend/pkg/validation"
)

var (
	ErrAlreadyCheckedIn    = errors.New("already checked in")
	ErrOccurrenceCancelled = errors.New("occurrence is cancelled")
	ErrNoOccurrenceToday   = errors.New("no occurrence of this schedule today")
)

// Tx is a unit of work holding the occurrence row lock.
type Tx interface {
	Occurrence() *models.Occurrence
	HasMember(ctx context.Context, memberID uuid.UUID) (bool, error)
	Insert(ctx context.Context, rec *models.AttendanceRecord) error
	RefreshCounts(ctx context.Context) (models.Counts, error)
}

// Store persists attendance records.
type Store interface {
	InOccurrence(ctx context.Context, tenantID, occurrenceID uuid.UUID, fn func(Tx) error) error
	List(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.AttendanceRecord, error)
	// OccurrenceOn returns the schedule's occurrence on date, preferring ones that are not cancelled.
	OccurrenceOn(ctx context.Context, tenantID, scheduleID uuid.UUID, date time.Time) (*models.Occurrence, error)
}

// OccurrenceLookup reads occurrences outside a check-in transaction.
type OccurrenceLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error)
}

// ScheduleLookup resolves the timezone that decides which occurrence is "today".
type ScheduleLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Schedule, error)
}

// MemberLookup resolves members by id or by the email typed at self check-in.
type MemberLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Member, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Member, error)
}

// TokenVerifier checks QR tokens.
type TokenVerifier interface {
	Verify(token string, purpose models.QRPurpose) (*qrtoken.Claims, error)
}

// Publisher fans out counter changes to live clients.
type Publisher interface {
	PublishCounts(ctx context.Context, tenantID uuid.UUID, c models.Counts)
}

// Service implements check-in rules.
type Service struct {
	store       Store
	occurrences OccurrenceLookup
	schedules   ScheduleLookup
	members     MemberLookup
	tokens      TokenVerifier
	live        Publisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates an attendance service. live may be nil.
func NewService(store Store, occurrences OccurrenceLookup, schedules ScheduleLookup, members MemberLookup,
	tokens TokenVerifier, live Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		occurrences: occurrences,
		schedules:   schedules,
		members:     members,
		tokens:      tokens,
		live:        live,
		logger:      logger,
		now:         time.Now,
	}
}

// CheckInInput is a staff check-in. Exactly one of MemberID or GuestName is set.
type CheckInInput struct {
	MemberID  *uuid.UUID           `json:"member_id"`
	GuestName string               `json:"guest_name" binding:"max=255"`
	Method    models.CheckinMethod `json:"checkin_method" binding:"required,oneof=manual staff_scan"`
	Notes     string               `json:"notes" binding:"max=1000"`
}

// SelfCheckInInput is posted by the page behind an attendance QR code.
type SelfCheckInInput struct {
	Token        string     `json:"token" binding:"required"`
	OccurrenceID *uuid.UUID `json:"occurrence_id"`
	Email        string     `json:"email" binding:"omitempty,email,max=255"`
	Name         string     `json:"name" binding:"max=255"`
}

// List returns the occurrence's check-ins, newest first.
func (s *Service) List(ctx context.Context, tenantID, occurrenceID uuid.UUID) ([]models.AttendanceRecord, error) {
	if _, err := s.occurrences.Get(ctx, tenantID, occurrenceID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, tenantID, occurrenceID)
}

// Stats summarises the occurrence's check-ins against its confirmed head count.
func (s *Service) Stats(ctx context.Context, tenantID, occurrenceID uuid.UUID) (*models.AttendanceStats, error) {
	occ, err := s.occurrences.Get(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	return stats(list, occ.RegisteredCount), nil
}

func stats(list []models.AttendanceRecord, registered int) *models.AttendanceStats {
	st := &models.AttendanceStats{
		Total:      len(list),
		Registered: registered,
		ByMethod: map[models.CheckinMethod]int{
			models.CheckinManual:    0,
			models.CheckinStaffScan: 0,
			models.CheckinSelf:      0,
		},
	}
	for _, r := range list {
		if r.MemberID != nil {
			st.Members++
		} else {
			st.Guests++
		}
		st.ByMethod[r.CheckinMethod]++
	}
	if registered > 0 {
		st.CheckInRate = math.Round(float64(st.Total)/float64(registered)*10000) / 10000
	}
	return st
}

// CheckIn records a staff check-in. Manual and staff-scan check-ins never need a QR token.
func (s *Service) CheckIn(ctx context.Context, tenantID, occurrenceID uuid.UUID, by *uuid.UUID, in CheckInInput) (*models.AttendanceRecord, error) {
	rec := &models.AttendanceRecord{
		TenantID:      tenantID,
		OccurrenceID:  occurrenceID,
		CheckinMethod: in.Method,
		CheckedInBy:   by,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if !rec.CheckinMethod.Valid() || rec.CheckinMethod == models.CheckinSelf {
		return nil, validation.NewError("checkin_method", "must be manual or staff_scan")
	}
	name := strings.TrimSpace(in.GuestName)
	switch {
	case in.MemberID != nil && name != "":
		return nil, validation.NewError("member_id", "check in either a member or a guest, not both")
	case in.MemberID != nil:
		m, err := s.members.Get(ctx, tenantID, *in.MemberID)
		if err != nil {
			return nil, err
		}
		id := m.ID
		rec.MemberID = &id
		rec.MemberName = m.FullName()
	case name != "":
		rec.GuestName = name
	default:
		return nil, validation.NewError("member_id", "member_id or guest_name is required")
	}
	if err := s.record(ctx, tenantID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SelfCheckIn verifies an attendance QR token and checks the visitor in. The token is judged before the
// occurrence: an expired code is refused whatever state the occurrence is in. A visitor whose email matches a
// member is checked in as that member, anyone else as a guest.
func (s *Service) SelfCheckIn(ctx context.Context, in SelfCheckInInput) (*models.AttendanceRecord, error) {
	claims, err := s.tokens.Verify(strings.TrimSpace(in.Token), models.QRPurposeAttendance)
	if err != nil {
		return nil, err
	}
	tenantID := claims.TenantID

	var occ *models.Occurrence
	if in.OccurrenceID != nil {
		occ, err = s.occurrences.Get(ctx, tenantID, *in.OccurrenceID)
		if err != nil {
			return nil, err
		}
		if occ.ScheduleID != claims.ScheduleID {
			return nil, qrtoken.ErrInvalidToken
		}
	} else {
		sc, err := s.schedules.Get(ctx, tenantID, claims.ScheduleID)
		if err != nil {
			return nil, err
		}
		occ, err = s.store.OccurrenceOn(ctx, tenantID, sc.ID, localDate(s.now(), sc.Timezone))
		if err != nil {
			return nil, err
		}
	}
	if occ.Status == models.OccurrenceCancelled {
		return nil, ErrOccurrenceCancelled
	}

	rec := &models.AttendanceRecord{TenantID: tenantID, OccurrenceID: occ.ID, CheckinMethod: models.CheckinSelf}
	email := utils.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email != "" {
		m, err := s.members.GetByEmail(ctx, tenantID, email)
		switch {
		case err == nil:
			id := m.ID
			rec.MemberID = &id
			rec.MemberName = m.FullName()
		case !errors.Is(err, members.ErrNotFound):
			return nil, err
		}
	}
	if rec.MemberID == nil {
		if name == "" {
			return nil, validation.NewError("name", validation.ErrFieldRequired)
		}
		rec.GuestName = name
	}
	if err := s.record(ctx, tenantID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// localDate is the calendar date of t in the named zone, as a UTC midnight.
func localDate(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) record(ctx context.Context, tenantID uuid.UUID, rec *models.AttendanceRecord) error {
	var counts models.Counts
	err := s.store.InOccurrence(ctx, tenantID, rec.OccurrenceID, func(tx Tx) error {
		if tx.Occurrence().Status == models.OccurrenceCancelled {
			return ErrOccurrenceCancelled
		}
		if rec.MemberID != nil {
			dup, err := tx.HasMember(ctx, *rec.MemberID)
			if err != nil {
				return err
			}
			if dup {
				return ErrAlreadyCheckedIn
			}
		}
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}
		var err error
		counts, err = tx.RefreshCounts(ctx)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("checked in",
		zap.String("occurrence_id", rec.OccurrenceID.String()),
		zap.String("attendance_id", rec.ID.String()),
		zap.String("method", string(rec.CheckinMethod)),
		zap.Bool("member", rec.MemberID != nil),
	)
	if s.live != nil {
		s.live.PublishCounts(ctx, tenantID, counts)
	}
	return nil
}
