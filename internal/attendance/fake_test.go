package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/internal/schedules"
	"github.com/shepherd-hub/backend/pkg/utils"
)

type memStore struct {
	mu      sync.Mutex
	occs    map[uuid.UUID]models.Occurrence
	records []models.AttendanceRecord
	clock   time.Time
}

func (s *memStore) InOccurrence(_ context.Context, tenantID, occurrenceID uuid.UUID, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[occurrenceID]
	if !ok || o.TenantID != tenantID {
		return occurrences.ErrNotFound
	}
	tx := &memTx{store: s, occ: o, records: append([]models.AttendanceRecord(nil), s.records...)}
	if err := fn(tx); err != nil {
		return err
	}
	s.records = tx.records
	s.occs[occurrenceID] = tx.occ
	return nil
}

func (s *memStore) List(_ context.Context, tenantID, occurrenceID uuid.UUID) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AttendanceRecord{}
	for _, r := range s.records {
		if r.TenantID == tenantID && r.OccurrenceID == occurrenceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) OccurrenceOn(_ context.Context, tenantID, scheduleID uuid.UUID, date time.Time) (*models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.occs {
		if o.TenantID == tenantID && o.ScheduleID == scheduleID && o.OccurrenceDate.Equal(date) {
			return &o, nil
		}
	}
	return nil, ErrNoOccurrenceToday
}

func (s *memStore) Get(_ context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok || o.TenantID != tenantID {
		return nil, occurrences.ErrNotFound
	}
	return &o, nil
}

type memTx struct {
	store   *memStore
	occ     models.Occurrence
	records []models.AttendanceRecord
}

func (t *memTx) Occurrence() *models.Occurrence { return &t.occ }

func (t *memTx) HasMember(_ context.Context, memberID uuid.UUID) (bool, error) {
	for _, r := range t.records {
		if r.OccurrenceID == t.occ.ID && r.MemberID != nil && *r.MemberID == memberID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Insert(_ context.Context, rec *models.AttendanceRecord) error {
	rec.ID = uuid.New()
	rec.CheckedInAt = t.store.clock
	t.records = append(t.records, *rec)
	return nil
}

func (t *memTx) RefreshCounts(context.Context) (models.Counts, error) {
	n := 0
	for _, r := range t.records {
		if r.OccurrenceID == t.occ.ID {
			n++
		}
	}
	t.occ.CheckedInCount = n
	return t.occ.Counts(), nil
}

type fakeSchedules map[uuid.UUID]*models.Schedule

func (f fakeSchedules) Get(_ context.Context, _, id uuid.UUID) (*models.Schedule, error) {
	sc, ok := f[id]
	if !ok {
		return nil, schedules.ErrNotFound
	}
	return sc, nil
}

type fakeMembers map[uuid.UUID]*models.Member

func (f fakeMembers) Get(_ context.Context, _, id uuid.UUID) (*models.Member, error) {
	m, ok := f[id]
	if !ok {
		return nil, members.ErrNotFound
	}
	return m, nil
}

func (f fakeMembers) GetByEmail(_ context.Context, _ uuid.UUID, email string) (*models.Member, error) {
	for _, m := range f {
		if utils.NormalizeEmail(m.Email) == utils.NormalizeEmail(email) {
			return m, nil
		}
	}
	return nil, members.ErrNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	counts []models.Counts
}

func (p *recordingPublisher) PublishCounts(_ context.Context, _ uuid.UUID, c models.Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = append(p.counts, c)
}

type fixture struct {
	svc      *Service
	store    *memStore
	members  fakeMembers
	tokens   *qrtoken.Service
	live     *recordingPublisher
	tenant   uuid.UUID
	schedule *models.Schedule
	now      time.Time
}

func newFixture() *fixture {
	now := time.Date(2024, 3, 10, 17, 30, 0, 0, time.UTC)
	f := &fixture{
		store:   &memStore{occs: map[uuid.UUID]models.Occurrence{}, clock: now},
		members: fakeMembers{},
		tokens:  qrtoken.NewService("test-secret"),
		live:    &recordingPublisher{},
		tenant:  uuid.New(),
		now:     now,
	}
	f.schedule = &models.Schedule{ID: uuid.New(), TenantID: f.tenant, Name: "Sunday Service", Timezone: "America/New_York"}
	f.svc = NewService(f.store, f.store, fakeSchedules{f.schedule.ID: f.schedule}, f.members, f.tokens, f.live, nil)
	f.svc.now = func() time.Time { return now }
	return f
}

// occurrence adds an occurrence of the fixture schedule on 2024-03-10.
func (f *fixture) occurrence(status models.OccurrenceStatus) models.Occurrence {
	start := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	o := models.Occurrence{
		ID: uuid.New(), TenantID: f.tenant, ScheduleID: f.schedule.ID,
		OccurrenceDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		StartAt:        start, EndAt: start.Add(90 * time.Minute),
		Status: status, RegisteredCount: 4,
	}
	f.store.occs[o.ID] = o
	return o
}

func (f *fixture) member(first, email string) uuid.UUID {
	m := &models.Member{ID: uuid.New(), TenantID: f.tenant, FirstName: first, LastName: "Doe", Email: email}
	f.members[m.ID] = m
	return m.ID
}

func (f *fixture) token(ttl time.Duration) string {
	tok, _, err := f.tokens.Issue(f.tenant, f.schedule.ID, models.QRPurposeAttendance, ttl)
	if err != nil {
		panic(err)
	}
	return tok
}
