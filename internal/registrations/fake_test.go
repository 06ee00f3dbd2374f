package registrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/notify"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/internal/schedules"
)

// memStore keeps registrations in memory. InOccurrence runs against a copy that is kept only when fn succeeds.
type memStore struct {
	mu    sync.Mutex
	occs  map[uuid.UUID]models.Occurrence
	regs  []models.Registration
	seq   int64
	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{occs: map[uuid.UUID]models.Occurrence{}, clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (s *memStore) List(_ context.Context, tenantID, occurrenceID uuid.UUID, status *models.RegistrationStatus) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Registration{}
	for _, r := range s.regs {
		if r.TenantID == tenantID && r.OccurrenceID == occurrenceID && (status == nil || r.Status == *status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, tenantID, id uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regs {
		if r.ID == id && r.TenantID == tenantID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) TenantOf(_ context.Context, occurrenceID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[occurrenceID]
	if !ok {
		return uuid.Nil, occurrences.ErrNotFound
	}
	return o.TenantID, nil
}

func (s *memStore) InOccurrence(_ context.Context, tenantID, occurrenceID uuid.UUID, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[occurrenceID]
	if !ok || o.TenantID != tenantID {
		return occurrences.ErrNotFound
	}
	tx := &memTx{store: s, occ: o, regs: append([]models.Registration(nil), s.regs...), seq: s.seq}
	if err := fn(tx); err != nil {
		return err
	}
	s.regs, s.seq = tx.regs, tx.seq
	s.occs[occurrenceID] = tx.occ
	return nil
}

// Get implements OccurrenceLookup.
func (s *memStore) occurrence(tenantID, id uuid.UUID) (*models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok || o.TenantID != tenantID {
		return nil, occurrences.ErrNotFound
	}
	return &o, nil
}

type memTx struct {
	store *memStore
	occ   models.Occurrence
	regs  []models.Registration
	seq   int64
}

func (t *memTx) Occurrence() *models.Occurrence { return &t.occ }

func (t *memTx) Active(context.Context) ([]models.Registration, error) {
	out := []models.Registration{}
	for _, r := range t.regs {
		if r.OccurrenceID == t.occ.ID && r.Status != models.RegistrationCancelled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return arrivedBefore(out[i], out[j]) })
	return out, nil
}

func (t *memTx) Get(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	for _, r := range t.regs {
		if r.ID == id && r.OccurrenceID == t.occ.ID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) Insert(_ context.Context, reg *models.Registration) error {
	t.seq++
	reg.ID = uuid.New()
	reg.Seq = t.seq
	// Same timestamp for everyone so ordering falls back to seq.
	reg.CreatedAt = t.store.clock
	reg.UpdatedAt = t.store.clock
	t.regs = append(t.regs, *reg)
	return nil
}

func (t *memTx) SetStatus(_ context.Context, id uuid.UUID, status models.RegistrationStatus) error {
	for i := range t.regs {
		if t.regs[i].ID == id {
			t.regs[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) SetWaitlistPositions(_ context.Context, positions map[uuid.UUID]*int) error {
	for i := range t.regs {
		if pos, ok := positions[t.regs[i].ID]; ok {
			t.regs[i].WaitlistPosition = pos
		}
	}
	return nil
}

func (t *memTx) RefreshCounts(context.Context) (models.Counts, error) {
	active, _ := t.Active(context.Background())
	registered, waitlisted := tally(active)
	t.occ.RegisteredCount, t.occ.WaitlistCount = registered, waitlisted
	return t.occ.Counts(), nil
}

type occurrenceLookup struct{ store *memStore }

func (l occurrenceLookup) Get(_ context.Context, tenantID, id uuid.UUID) (*models.Occurrence, error) {
	return l.store.occurrence(tenantID, id)
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

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
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
	svc       *Service
	store     *memStore
	schedules fakeSchedules
	members   fakeMembers
	notifier  *recordingNotifier
	live      *recordingPublisher
	tenant    uuid.UUID
	schedule  *models.Schedule
}

func newFixture(autoPromote bool) *fixture {
	f := &fixture{
		store:     newMemStore(),
		schedules: fakeSchedules{},
		members:   fakeMembers{},
		notifier:  &recordingNotifier{},
		live:      &recordingPublisher{},
		tenant:    uuid.New(),
	}
	f.schedule = &models.Schedule{ID: uuid.New(), TenantID: f.tenant, Name: "Marriage Seminar", Timezone: "UTC", FormSchema: []models.FormField{}}
	f.schedules[f.schedule.ID] = f.schedule
	f.svc = NewService(f.store, occurrenceLookup{f.store}, f.schedules, f.members, f.notifier, f.live, autoPromote, nil)
	return f
}

func (f *fixture) occurrence(capacity *int) models.Occurrence {
	start := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	o := models.Occurrence{
		ID: uuid.New(), TenantID: f.tenant, ScheduleID: f.schedule.ID,
		OccurrenceDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		StartAt:        start, EndAt: start.Add(2 * time.Hour),
		Status: models.OccurrenceScheduled, Capacity: capacity,
	}
	f.store.occs[o.ID] = o
	return o
}

func (f *fixture) member(first, email string) uuid.UUID {
	m := &models.Member{ID: uuid.New(), TenantID: f.tenant, FirstName: first, LastName: "Doe", Email: email}
	f.members[m.ID] = m
	return m.ID
}

func intPtr(n int) *int { return &n }
