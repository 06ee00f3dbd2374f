// Package registrations admits members and guests to occurrences, keeping a FIFO waitlist once capacity is reached.
package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/formschema"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/notify"
	"github.com/shepherd-hub/backend/pkg/utils"
	"github.com/shepherd-hub/backend/pkg/validation"
)

var (
	ErrNotFound          = errors.New("registration not found")
	ErrOccurrenceClosed  = errors.New("occurrence is not open for registration")
	ErrDuplicate         = errors.New("already registered for this occurrence")
	ErrCapacityExceeded  = errors.New("not enough capacity to confirm this registration")
	ErrInvalidTransition = errors.New("invalid registration status change")
)

const maxPartySize = 50

// Tx is a unit of work holding the occurrence row lock.
type Tx interface {
	Occurrence() *models.Occurrence
	// Active returns non-cancelled registrations ordered by (created_at, seq).
	Active(ctx context.Context) ([]models.Registration, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Insert(ctx context.Context, reg *models.Registration) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) error
	SetWaitlistPositions(ctx context.Context, positions map[uuid.UUID]*int) error
	RefreshCounts(ctx context.Context) (models.Counts, error)
}

// Store persists registrations.
type Store interface {
	// InOccurrence runs fn in a transaction that has locked the occurrence.
	InOccurrence(ctx context.Context, tenantID, occurrenceID uuid.UUID, fn func(Tx) error) error
	List(ctx context.Context, tenantID, occurrenceID uuid.UUID, status *models.RegistrationStatus) ([]models.Registration, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Registration, error)
	TenantOf(ctx context.Context, occurrenceID uuid.UUID) (uuid.UUID, error)
}

// OccurrenceLookup reads occurrences outside a registration transaction.
type OccurrenceLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error)
}

// ScheduleLookup reads the schedule that owns the registration form.
type ScheduleLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Schedule, error)
}

// MemberLookup resolves member registrants.
type MemberLookup interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Member, error)
}

// Publisher fans out counter changes to live clients.
type Publisher interface {
	PublishCounts(ctx context.Context, tenantID uuid.UUID, c models.Counts)
}

// Service implements registration and waitlist rules.
type Service struct {
	store       Store
	occurrences OccurrenceLookup
	schedules   ScheduleLookup
	members     MemberLookup
	notifier    notify.Notifier
	live        Publisher
	autoPromote bool
	logger      *zap.Logger
}

// NewService creates a registrations service. notifier and live may be nil.
func NewService(store Store, occurrences OccurrenceLookup, schedules ScheduleLookup, members MemberLookup,
	notifier notify.Notifier, live Publisher, autoPromote bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:       store,
		occurrences: occurrences,
		schedules:   schedules,
		members:     members,
		notifier:    notifier,
		live:        live,
		autoPromote: autoPromote,
		logger:      logger,
	}
}

// RegisterInput identifies the attendee: either a member, or a guest with name and email.
type RegisterInput struct {
	MemberID      *uuid.UUID             `json:"member_id"`
	GuestName     string                 `json:"guest_name" binding:"max=255"`
	GuestEmail    string                 `json:"guest_email" binding:"omitempty,email,max=255"`
	GuestPhone    string                 `json:"guest_phone" binding:"max=50"`
	PartySize     int                    `json:"party_size" binding:"omitempty,min=1,max=50"`
	FormResponses map[string]interface{} `json:"form_responses"`
}

// List returns the occurrence's registrations, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID, occurrenceID uuid.UUID, status *models.RegistrationStatus) ([]models.Registration, error) {
	if _, err := s.occurrences.Get(ctx, tenantID, occurrenceID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, tenantID, occurrenceID, status)
}

// Get returns one registration.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Registration, error) {
	return s.store.Get(ctx, tenantID, id)
}

// identity validates who is registering and returns the registration skeleton.
func (s *Service) identity(ctx context.Context, tenantID uuid.UUID, in RegisterInput) (*models.Registration, error) {
	reg := &models.Registration{TenantID: tenantID, PartySize: in.PartySize}
	if reg.PartySize == 0 {
		reg.PartySize = 1
	}
	if reg.PartySize < 1 || reg.PartySize > maxPartySize {
		return nil, validation.NewError("party_size", "must be between 1 and 50")
	}
	name := strings.TrimSpace(in.GuestName)
	email := utils.NormalizeEmail(in.GuestEmail)
	if in.MemberID != nil {
		if name != "" || email != "" {
			return nil, validation.NewError("member_id", "register either a member or a guest, not both")
		}
		m, err := s.members.Get(ctx, tenantID, *in.MemberID)
		if err != nil {
			return nil, err
		}
		id := m.ID
		reg.MemberID = &id
		reg.MemberName = m.FullName()
		reg.MemberEmail = m.Email
		return reg, nil
	}
	errs := validation.Error{Fields: map[string]string{}}
	if name == "" {
		errs.Fields["guest_name"] = validation.ErrFieldRequired
	}
	if email == "" {
		errs.Fields["guest_email"] = validation.ErrFieldRequired
	}
	if len(errs.Fields) > 0 {
		return nil, &errs
	}
	reg.GuestName = name
	reg.GuestEmail = email
	reg.GuestPhone = strings.TrimSpace(in.GuestPhone)
	return reg, nil
}

func sameAttendee(a, b *models.Registration) bool {
	if a.MemberID != nil || b.MemberID != nil {
		return a.MemberID != nil && b.MemberID != nil && *a.MemberID == *b.MemberID
	}
	return a.GuestEmail != "" && a.GuestEmail == b.GuestEmail
}

// tally returns the confirmed head count and the number of waitlisted registrations.
func tally(active []models.Registration) (registered, waitlisted int) {
	for _, r := range active {
		switch r.Status {
		case models.RegistrationConfirmed:
			registered += r.PartySize
		case models.RegistrationWaitlisted:
			waitlisted++
		}
	}
	return registered, waitlisted
}

func fits(capacity *int, registered, party int) bool {
	return capacity == nil || registered+party <= *capacity
}

// Register admits the attendee if the whole party fits, otherwise puts them at the end of the waitlist.
func (s *Service) Register(ctx context.Context, tenantID, occurrenceID uuid.UUID, in RegisterInput) (*models.Registration, error) {
	occ, err := s.occurrences.Get(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	reg, err := s.identity(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	sc, err := s.schedules.Get(ctx, tenantID, occ.ScheduleID)
	if err != nil {
		return nil, err
	}
	clean, ferrs := formschema.ValidateResponses(sc.FormSchema, in.FormResponses)
	if ferrs != nil {
		return nil, &validation.Error{Fields: ferrs}
	}
	if len(clean) > 0 {
		if reg.FormResponses, err = json.Marshal(clean); err != nil {
			return nil, err
		}
	}
	reg.OccurrenceID = occurrenceID

	var counts models.Counts
	err = s.store.InOccurrence(ctx, tenantID, occurrenceID, func(tx Tx) error {
		if !isOpen(tx.Occurrence().Status) {
			return ErrOccurrenceClosed
		}
		active, err := tx.Active(ctx)
		if err != nil {
			return err
		}
		for i := range active {
			if sameAttendee(&active[i], reg) {
				return ErrDuplicate
			}
		}
		registered, waitlisted := tally(active)
		if fits(tx.Occurrence().Capacity, registered, reg.PartySize) {
			reg.Status = models.RegistrationConfirmed
		} else {
			pos := waitlisted + 1
			reg.Status = models.RegistrationWaitlisted
			reg.WaitlistPosition = &pos
		}
		if err := tx.Insert(ctx, reg); err != nil {
			return err
		}
		counts, err = tx.RefreshCounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("occurrence_id", occurrenceID.String()),
		zap.String("status", string(reg.Status)),
	)
	s.publish(ctx, tenantID, counts)
	emailType := models.EmailTypeRegistrationConfirmed
	if reg.Status == models.RegistrationWaitlisted {
		emailType = models.EmailTypeRegistrationWaitlisted
	}
	s.notify(ctx, emailType, tenantID, occ, reg)
	return reg, nil
}

// StatusResult is the outcome of a status change, including anyone promoted off the waitlist.
type StatusResult struct {
	Registration *models.Registration  `json:"registration"`
	Promoted     []models.Registration `json:"promoted"`
	Counts       models.Counts         `json:"counts"`
}

func canChange(from, to models.RegistrationStatus) bool {
	switch from {
	case models.RegistrationWaitlisted:
		return to == models.RegistrationConfirmed || to == models.RegistrationCancelled
	case models.RegistrationConfirmed:
		return to == models.RegistrationCancelled
	}
	return false
}

// UpdateStatus confirms or cancels a registration. Cancelling a confirmed registration may promote
// waitlisted ones strictly in arrival order; promotion stops at the first party that does not fit.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, to models.RegistrationStatus) (*StatusResult, error) {
	current, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	res := &StatusResult{Promoted: []models.Registration{}}
	var occ models.Occurrence
	err = s.store.InOccurrence(ctx, tenantID, current.OccurrenceID, func(tx Tx) error {
		occ = *tx.Occurrence()
		reg, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !canChange(reg.Status, to) {
			return ErrInvalidTransition
		}
		active, err := tx.Active(ctx)
		if err != nil {
			return err
		}
		registered, _ := tally(active)
		if to == models.RegistrationConfirmed && !fits(occ.Capacity, registered, reg.PartySize) {
			return ErrCapacityExceeded
		}
		if err := tx.SetStatus(ctx, id, to); err != nil {
			return err
		}
		setStatus(active, id, to)

		promoted := map[uuid.UUID]bool{}
		freed := reg.Status == models.RegistrationConfirmed && to == models.RegistrationCancelled
		if freed && s.autoPromote && isOpen(occ.Status) {
			for _, pid := range promotions(active, occ.Capacity) {
				if err := tx.SetStatus(ctx, pid, models.RegistrationConfirmed); err != nil {
					return err
				}
				setStatus(active, pid, models.RegistrationConfirmed)
				promoted[pid] = true
			}
		}
		if changed := repositionWaitlist(active); len(changed) > 0 {
			if err := tx.SetWaitlistPositions(ctx, changed); err != nil {
				return err
			}
		}

		for _, r := range active {
			r := r
			switch {
			case r.ID == id:
				res.Registration = &r
			case promoted[r.ID]:
				res.Promoted = append(res.Promoted, r)
			}
		}
		res.Counts, err = tx.RefreshCounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration status changed",
		zap.String("registration_id", id.String()),
		zap.String("to", string(to)),
		zap.Int("promoted", len(res.Promoted)),
	)
	s.publish(ctx, tenantID, res.Counts)
	if to == models.RegistrationConfirmed {
		s.notify(ctx, models.EmailTypeWaitlistPromoted, tenantID, &occ, res.Registration)
	}
	for i := range res.Promoted {
		s.notify(ctx, models.EmailTypeWaitlistPromoted, tenantID, &occ, &res.Promoted[i])
	}
	return res, nil
}

func setStatus(active []models.Registration, id uuid.UUID, status models.RegistrationStatus) {
	for i := range active {
		if active[i].ID == id {
			active[i].Status = status
		}
	}
}

func isOpen(status models.OccurrenceStatus) bool {
	return status != models.OccurrenceCancelled && status != models.OccurrenceCompleted
}

// promotions returns the waitlisted registrations to confirm, head of the line first.
func promotions(active []models.Registration, capacity *int) []uuid.UUID {
	registered, _ := tally(active)
	waiting := make([]models.Registration, 0, len(active))
	for _, r := range active {
		if r.Status == models.RegistrationWaitlisted {
			waiting = append(waiting, r)
		}
	}
	sort.SliceStable(waiting, func(i, j int) bool { return arrivedBefore(waiting[i], waiting[j]) })
	var out []uuid.UUID
	for _, r := range waiting {
		if !fits(capacity, registered, r.PartySize) {
			break
		}
		registered += r.PartySize
		out = append(out, r.ID)
	}
	return out
}

func arrivedBefore(a, b models.Registration) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// repositionWaitlist renumbers waitlisted registrations 1..n in arrival order and clears positions
// of everyone else. It updates active in place and returns only the positions that changed.
func repositionWaitlist(active []models.Registration) map[uuid.UUID]*int {
	order := make([]int, len(active))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return arrivedBefore(active[order[i]], active[order[j]]) })
	changed := map[uuid.UUID]*int{}
	next := 1
	for _, idx := range order {
		r := &active[idx]
		var want *int
		if r.Status == models.RegistrationWaitlisted {
			p := next
			want = &p
			next++
		}
		if !samePosition(r.WaitlistPosition, want) {
			changed[r.ID] = want
			r.WaitlistPosition = want
		}
	}
	return changed
}

func samePosition(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Service) publish(ctx context.Context, tenantID uuid.UUID, c models.Counts) {
	if s.live != nil {
		s.live.PublishCounts(ctx, tenantID, c)
	}
}

func (s *Service) notify(ctx context.Context, emailType string, tenantID uuid.UUID, occ *models.Occurrence, reg *models.Registration) {
	if reg.ContactEmail() == "" {
		return
	}
	ev := notify.Event{Type: emailType, TenantID: tenantID, Occurrence: occ, Registration: reg}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("queue registration email failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}
