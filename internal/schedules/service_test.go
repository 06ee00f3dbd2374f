package schedules

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/ministries"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/pkg/storage"
	"github.com/shepherd-hub/backend/pkg/validation"
)

type memStore struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]models.Schedule
	tokens []models.ScheduleQRToken
	next   map[uuid.UUID]*models.Occurrence
}

func newMemStore() *memStore {
	return &memStore{rows: map[uuid.UUID]models.Schedule{}, next: map[uuid.UUID]*models.Occurrence{}}
}

func (s *memStore) List(_ context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Schedule{}
	for _, sc := range s.rows {
		if sc.TenantID == tenantID && (f.MinistryID == nil || sc.MinistryID == *f.MinistryID) {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, tenantID, id uuid.UUID) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[id]
	if !ok || sc.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return &sc, nil
}

func (s *memStore) Create(_ context.Context, sc *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = uuid.New()
	sc.CreatedAt, sc.UpdatedAt = time.Now(), time.Now()
	s.rows[sc.ID] = *sc
	return nil
}

func (s *memStore) Update(_ context.Context, sc *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[sc.ID]; !ok {
		return ErrNotFound
	}
	s.rows[sc.ID] = *sc
	return nil
}

func (s *memStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.rows[id]; !ok || sc.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) SetCoverPhoto(_ context.Context, _, id uuid.UUID, url, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.rows[id]
	sc.CoverPhotoURL, sc.CoverPhotoKey = url, key
	s.rows[id] = sc
	return nil
}

func (s *memStore) InsertQRToken(_ context.Context, t *models.ScheduleQRToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	s.tokens = append(s.tokens, *t)
	return nil
}

func (s *memStore) LatestQRToken(_ context.Context, _, scheduleID uuid.UUID, purpose models.QRPurpose, now time.Time) (*models.ScheduleQRToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.tokens) - 1; i >= 0; i-- {
		t := s.tokens[i]
		if t.ScheduleID == scheduleID && t.Purpose == purpose && t.ExpiresAt.After(now) {
			return &t, nil
		}
	}
	return nil, ErrQRNotFound
}

func (s *memStore) NextOccurrence(_ context.Context, _, scheduleID uuid.UUID, _ time.Time) (*models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.next[scheduleID]; ok {
		return o, nil
	}
	return nil, ErrNoUpcoming
}

type fakeMinistries struct{ known map[uuid.UUID]bool }

func (f fakeMinistries) Get(_ context.Context, tenantID, id uuid.UUID) (*models.Ministry, error) {
	if !f.known[id] {
		return nil, ministries.ErrNotFound
	}
	return &models.Ministry{ID: id, TenantID: tenantID}, nil
}

type fakeMedia struct {
	uploaded map[string][]byte
	deleted  []string
}

func (m *fakeMedia) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if contentType != "image/webp" {
		return "", errors.New("unexpected content type " + contentType)
	}
	m.uploaded[key] = data
	return "https://media.example.org/" + key, nil
}

func (m *fakeMedia) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

type fixture struct {
	svc        *Service
	store      *memStore
	media      *fakeMedia
	tenant     uuid.UUID
	ministryID uuid.UUID
}

func newFixture(withMedia bool) *fixture {
	f := &fixture{store: newMemStore(), tenant: uuid.New(), ministryID: uuid.New()}
	var media MediaStore
	if withMedia {
		f.media = &fakeMedia{uploaded: map[string][]byte{}}
		media = f.media
	}
	f.svc = NewService(f.store, fakeMinistries{known: map[uuid.UUID]bool{f.ministryID: true}},
		qrtoken.NewService("test-secret"), media,
		Config{DefaultQRExpiryHours: 24, PublicBaseURL: "https://church.example.org"}, nil)
	return f
}

func (f *fixture) input() Input {
	return Input{
		MinistryID:     f.ministryID,
		Name:           "Sunday Service",
		ScheduleType:   "service",
		StartDate:      "2024-03-03",
		StartTime:      "09:30",
		EndTime:        "11:00",
		Timezone:       "America/Chicago",
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=SU",
	}
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(false)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	assert.True(t, sc.IsActive)
	assert.Equal(t, models.LocationPhysical, sc.LocationType)
	assert.Equal(t, []models.FormField{}, sc.FormSchema)
	assert.Nil(t, sc.EndDate)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), sc.StartDate)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(false)
	tests := []struct {
		name   string
		mutate func(in *Input)
		field  string
	}{
		{"end before start", func(in *Input) { in.EndDate = "2024-03-01" }, "end_date"},
		{"bad rule", func(in *Input) { in.RecurrenceRule = "FREQ=FORTNIGHTLY" }, "recurrence_rule"},
		{"bad form", func(in *Input) {
			in.FormSchema = []models.FormField{{ID: "size", Type: models.FieldSelect, Label: "Size"}}
		}, "form_schema[0].options"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			tt.mutate(&in)
			_, err := f.svc.Create(context.Background(), f.tenant, in)
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestCreateFillsFormIDsAndAppliesTemplate(t *testing.T) {
	f := newFixture(false)
	in := f.input()
	in.FormSchema = []models.FormField{
		{Type: models.FieldText, Label: "Small group"},
		{Type: models.FieldText, Label: "Favourite hymn"},
	}
	in.FormTemplate = "Fellowship"
	sc, err := f.svc.Create(context.Background(), f.tenant, in)
	require.NoError(t, err)

	require.Len(t, sc.FormSchema, 5)
	assert.Equal(t, "Small group", sc.FormSchema[0].Label)
	assert.Equal(t, "Favourite hymn", sc.FormSchema[1].Label)
	assert.Equal(t, "Number of children attending", sc.FormSchema[2].Label)
	ids := map[string]bool{}
	for _, field := range sc.FormSchema {
		assert.NotEmpty(t, field.ID)
		ids[field.ID] = true
	}
	assert.Len(t, ids, 5)
}

func TestCreateUnknownFormTemplate(t *testing.T) {
	f := newFixture(false)
	in := f.input()
	in.FormTemplate = "picnic"
	_, err := f.svc.Create(context.Background(), f.tenant, in)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be one of: conference fellowship seminar", verr.Fields["form_template"])
}

func TestCreateUnknownMinistry(t *testing.T) {
	f := newFixture(false)
	in := f.input()
	in.MinistryID = uuid.New()
	_, err := f.svc.Create(context.Background(), f.tenant, in)
	assert.ErrorIs(t, err, ministries.ErrNotFound)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	f := newFixture(false)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	in := f.input()
	in.Name = "Evening Service"
	inactive := false
	in.IsActive = &inactive
	updated, err := f.svc.Update(context.Background(), f.tenant, sc.ID, in)
	require.NoError(t, err)
	assert.Equal(t, sc.ID, updated.ID)
	assert.Equal(t, "Evening Service", updated.Name)
	assert.False(t, updated.IsActive)

	_, err = f.svc.Update(context.Background(), uuid.New(), sc.ID, in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssueAndLatestQR(t *testing.T) {
	f := newFixture(false)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	_, err = f.svc.LatestQR(context.Background(), f.tenant, sc.ID, models.QRPurposeAttendance)
	assert.ErrorIs(t, err, ErrQRNotFound)

	issued, err := f.svc.IssueQR(context.Background(), f.tenant, sc.ID, models.QRPurposeAttendance, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://church.example.org/checkin?token="+issued.Token, issued.URL)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), issued.ExpiresAt, time.Minute)

	latest, err := f.svc.LatestQR(context.Background(), f.tenant, sc.ID, models.QRPurposeAttendance)
	require.NoError(t, err)
	assert.Equal(t, issued.Token, latest.Token)
	assert.Equal(t, issued.URL, latest.URL)

	_, err = f.svc.IssueQR(context.Background(), f.tenant, sc.ID, models.QRPurposeAttendance, 721)
	assert.ErrorIs(t, err, qrtoken.ErrInvalidTTL)
}

func TestResolveRegistrationQR(t *testing.T) {
	f := newFixture(false)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	issued, err := f.svc.IssueQR(context.Background(), f.tenant, sc.ID, models.QRPurposeRegistration, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://church.example.org/register?token="+issued.Token, issued.URL)

	_, err = f.svc.ResolveRegistrationQR(context.Background(), issued.Token)
	assert.ErrorIs(t, err, ErrNoUpcoming)

	occ := &models.Occurrence{ID: uuid.New(), ScheduleID: sc.ID, Status: models.OccurrenceScheduled}
	f.store.next[sc.ID] = occ
	target, err := f.svc.ResolveRegistrationQR(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, sc.ID, target.Schedule.ID)
	assert.Equal(t, occ.ID, target.Occurrence.ID)

	attendance, err := f.svc.IssueQR(context.Background(), f.tenant, sc.ID, models.QRPurposeAttendance, 2)
	require.NoError(t, err)
	_, err = f.svc.ResolveRegistrationQR(context.Background(), attendance.Token)
	assert.ErrorIs(t, err, qrtoken.ErrWrongPurpose)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 36))))
	return buf.Bytes()
}

func TestCoverPhotoRequiresStorage(t *testing.T) {
	f := newFixture(false)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	_, err = f.svc.SetCoverPhoto(context.Background(), f.tenant, sc.ID, pngBytes(t), "cover.png")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, f.svc.RemoveCoverPhoto(context.Background(), f.tenant, sc.ID), ErrStorageUnavailable)
}

func TestCoverPhotoReplaceAndRemove(t *testing.T) {
	f := newFixture(true)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	first, err := f.svc.SetCoverPhoto(context.Background(), f.tenant, sc.ID, pngBytes(t), "cover.png")
	require.NoError(t, err)
	assert.Contains(t, f.media.uploaded, first.CoverPhotoKey)
	assert.Equal(t, "https://media.example.org/"+first.CoverPhotoKey, first.CoverPhotoURL)

	second, err := f.svc.SetCoverPhoto(context.Background(), f.tenant, sc.ID, pngBytes(t), "cover.png")
	require.NoError(t, err)
	assert.NotEqual(t, first.CoverPhotoKey, second.CoverPhotoKey)
	assert.Equal(t, []string{first.CoverPhotoKey}, f.media.deleted)

	require.NoError(t, f.svc.RemoveCoverPhoto(context.Background(), f.tenant, sc.ID))
	stored, err := f.svc.Get(context.Background(), f.tenant, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.CoverPhotoKey)
	assert.Equal(t, []string{first.CoverPhotoKey, second.CoverPhotoKey}, f.media.deleted)
}

func TestCoverPhotoRejectsNonImage(t *testing.T) {
	f := newFixture(true)
	sc, err := f.svc.Create(context.Background(), f.tenant, f.input())
	require.NoError(t, err)

	_, err = f.svc.SetCoverPhoto(context.Background(), f.tenant, sc.ID, []byte("%PDF-1.4 not an image"), "doc.pdf")
	assert.ErrorIs(t, err, storage.ErrUnsupportedImage)
	assert.Empty(t, f.media.uploaded)
}
