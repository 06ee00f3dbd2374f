package registrations

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/validation"
)

func guest(name string, party int) RegisterInput {
	return RegisterInput{GuestName: name, GuestEmail: name + "@example.org", PartySize: party}
}

func positions(t *testing.T, f *fixture, occID uuid.UUID) map[string]int {
	t.Helper()
	list, err := f.svc.List(context.Background(), f.tenant, occID, nil)
	require.NoError(t, err)
	out := map[string]int{}
	for _, r := range list {
		if r.WaitlistPosition != nil {
			out[r.GuestName] = *r.WaitlistPosition
		}
	}
	return out
}

func TestRegisterCapacity(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(5))
	ctx := context.Background()

	a, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 3))
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, a.Status)
	assert.Nil(t, a.WaitlistPosition)

	// 3 + 2 = 5 fits exactly.
	b, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ben", 2))
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, b.Status)

	// A party of one no longer fits; the whole party goes to the waitlist.
	c, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("cy", 1))
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationWaitlisted, c.Status)
	require.NotNil(t, c.WaitlistPosition)
	assert.Equal(t, 1, *c.WaitlistPosition)

	d, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("dee", 4))
	require.NoError(t, err)
	assert.Equal(t, 2, *d.WaitlistPosition)

	stored := f.store.occs[occ.ID]
	assert.Equal(t, 5, stored.RegisteredCount)
	assert.Equal(t, 2, stored.WaitlistCount)
	require.Len(t, f.live.counts, 4)
	assert.Equal(t, models.Counts{OccurrenceID: occ.ID, Registered: 5, Waitlisted: 2}, f.live.counts[3])
	assert.Equal(t, []string{
		models.EmailTypeRegistrationConfirmed,
		models.EmailTypeRegistrationConfirmed,
		models.EmailTypeRegistrationWaitlisted,
		models.EmailTypeRegistrationWaitlisted,
	}, f.notifier.types())
}

func TestRegisterUnlimitedCapacity(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(nil)
	for i := 0; i < 20; i++ {
		reg, err := f.svc.Register(context.Background(), f.tenant, occ.ID, guest(uuid.NewString()[:8], 10))
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationConfirmed, reg.Status)
	}
	assert.Equal(t, 200, f.store.occs[occ.ID].RegisteredCount)
}

func TestRegisterZeroCapacityWaitlistsEveryone(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(0))
	reg, err := f.svc.Register(context.Background(), f.tenant, occ.ID, guest("ana", 1))
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationWaitlisted, reg.Status)
}

func TestRegisterIdentityRules(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(nil)
	memberID := f.member("Ana", "ana@example.org")
	ctx := context.Background()

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"guest without email", RegisterInput{GuestName: "Ben"}, "guest_email"},
		{"guest without name", RegisterInput{GuestEmail: "ben@example.org"}, "guest_name"},
		{"member and guest", RegisterInput{MemberID: &memberID, GuestName: "Ben", GuestEmail: "ben@example.org"}, "member_id"},
		{"party too large", RegisterInput{GuestName: "Ben", GuestEmail: "ben@example.org", PartySize: 51}, "party_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, f.tenant, occ.ID, tt.in)
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	unknown := uuid.New()
	_, err := f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{MemberID: &unknown})
	assert.ErrorIs(t, err, members.ErrNotFound)

	reg, err := f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{MemberID: &memberID})
	require.NoError(t, err)
	assert.Equal(t, "Ana Doe", reg.DisplayName())
	assert.Equal(t, 1, reg.PartySize)
	assert.Empty(t, f.store.regs[0].GuestName)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(nil)
	memberID := f.member("Ana", "ana@example.org")
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{MemberID: &memberID})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{MemberID: &memberID})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{GuestName: "Ben", GuestEmail: "Ben@Example.org"})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{GuestName: "Benjamin", GuestEmail: " ben@example.ORG "})
	assert.ErrorIs(t, err, ErrDuplicate)

	// A cancelled registration frees the identity again.
	list, err := f.svc.List(ctx, f.tenant, occ.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.tenant, list[1].ID, models.RegistrationCancelled)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, RegisterInput{GuestName: "Ben", GuestEmail: "ben@example.org"})
	assert.NoError(t, err)
}

func TestRegisterClosedOccurrence(t *testing.T) {
	for _, status := range []models.OccurrenceStatus{models.OccurrenceCancelled, models.OccurrenceCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(true)
			occ := f.occurrence(nil)
			occ.Status = status
			f.store.occs[occ.ID] = occ
			_, err := f.svc.Register(context.Background(), f.tenant, occ.ID, guest("ana", 1))
			assert.ErrorIs(t, err, ErrOccurrenceClosed)
			assert.Empty(t, f.store.regs)
		})
	}
}

func TestRegisterValidatesForm(t *testing.T) {
	f := newFixture(true)
	f.schedule.FormSchema = []models.FormField{
		{ID: "diet", Type: models.FieldSelect, Label: "Diet", Required: true, Options: []string{"none", "vegetarian"}},
		{ID: "notes", Type: models.FieldTextarea, Label: "Notes"},
	}
	occ := f.occurrence(nil)
	ctx := context.Background()

	in := guest("ana", 1)
	_, err := f.svc.Register(ctx, f.tenant, occ.ID, in)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "diet")

	in.FormResponses = map[string]interface{}{"diet": "vegetarian", "unknown": "dropped"}
	reg, err := f.svc.Register(ctx, f.tenant, occ.ID, in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"diet":"vegetarian"}`, string(reg.FormResponses))
}

func TestCancelPromotesFIFOWithoutSkipping(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(4))
	ctx := context.Background()

	a, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 2))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("ben", 2))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("cy", 3)) // waitlist 1
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("dee", 1)) // waitlist 2
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("eve", 1)) // waitlist 3
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cy": 1, "dee": 2, "eve": 3}, positions(t, f, occ.ID))

	// Two seats free up; cy needs three, so nobody behind cy is promoted either.
	res, err := f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, res.Registration.Status)
	assert.Empty(t, res.Promoted)
	assert.Equal(t, 2, res.Counts.Registered)
	assert.Equal(t, 3, res.Counts.Waitlisted)
	assert.Equal(t, map[string]int{"cy": 1, "dee": 2, "eve": 3}, positions(t, f, occ.ID))
}

func TestCancelPromotesWhileHeadFits(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(4))
	ctx := context.Background()

	a, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 4))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("ben", 2))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("cy", 1))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("dee", 2))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("eve", 1))
	require.NoError(t, err)

	// Four seats: ben (2) and cy (1) fit, dee (2) does not, so eve waits behind dee.
	res, err := f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationCancelled)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 2)
	assert.Equal(t, "ben", res.Promoted[0].GuestName)
	assert.Equal(t, "cy", res.Promoted[1].GuestName)
	assert.Nil(t, res.Promoted[0].WaitlistPosition)
	assert.Equal(t, 3, res.Counts.Registered)
	assert.Equal(t, 2, res.Counts.Waitlisted)
	assert.Equal(t, map[string]int{"dee": 1, "eve": 2}, positions(t, f, occ.ID))

	types := f.notifier.types()
	assert.Equal(t, []string{models.EmailTypeWaitlistPromoted, models.EmailTypeWaitlistPromoted}, types[len(types)-2:])
}

func TestCancelWithoutAutoPromote(t *testing.T) {
	f := newFixture(false)
	occ := f.occurrence(intPtr(1))
	ctx := context.Background()

	a, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 1))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("ben", 1))
	require.NoError(t, err)

	res, err := f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationCancelled)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)
	assert.Equal(t, map[string]int{"ben": 1}, positions(t, f, occ.ID))
}

func TestCancelWaitlistedRedensifies(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(1))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 1))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("ben", 1))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("cy", 1))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.tenant, occ.ID, guest("dee", 1))
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.tenant, occ.ID, nil)
	require.NoError(t, err)
	res, err := f.svc.UpdateStatus(ctx, f.tenant, list[1].ID, models.RegistrationCancelled) // ben, position 1
	require.NoError(t, err)
	assert.Nil(t, res.Registration.WaitlistPosition)
	assert.Empty(t, res.Promoted, "cancelling a waitlisted registration frees no seats")
	assert.Equal(t, map[string]int{"cy": 1, "dee": 2}, positions(t, f, occ.ID))
}

func TestAdminConfirmIsCapacityChecked(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(2))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 2))
	require.NoError(t, err)
	ben, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ben", 1))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.tenant, ben.ID, models.RegistrationConfirmed)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	stored := f.store.occs[occ.ID]
	stored.Capacity = intPtr(3)
	f.store.occs[occ.ID] = stored

	res, err := f.svc.UpdateStatus(ctx, f.tenant, ben.ID, models.RegistrationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, res.Registration.Status)
	assert.Nil(t, res.Registration.WaitlistPosition)
	assert.Equal(t, 3, res.Counts.Registered)
	assert.Equal(t, 0, res.Counts.Waitlisted)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(nil)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, f.tenant, occ.ID, guest("ana", 1))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationWaitlisted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationCancelled)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.tenant, a.ID, models.RegistrationConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancelled is terminal")

	_, err = f.svc.UpdateStatus(ctx, f.tenant, uuid.New(), models.RegistrationCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportQuotesFields(t *testing.T) {
	f := newFixture(true)
	f.schedule.FormSchema = []models.FormField{{ID: "notes", Type: models.FieldTextarea, Label: "Notes"}}
	occ := f.occurrence(nil)
	ctx := context.Background()

	in := RegisterInput{GuestName: "Doe, Jane", GuestEmail: "jane@example.org", PartySize: 2,
		FormResponses: map[string]interface{}{"notes": "needs \"quiet\" room,\nnear exit"}}
	_, err := f.svc.Register(ctx, f.tenant, occ.ID, in)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, f.tenant, occ.ID, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Name", "Email", "Phone", "Type", "Party Size", "Status", "Waitlist Position", "Registered At", "Notes"}, records[0])
	assert.Equal(t, "Doe, Jane", records[1][0])
	assert.Equal(t, "guest", records[1][3])
	assert.Equal(t, "2", records[1][4])
	assert.Equal(t, "needs \"quiet\" room,\nnear exit", records[1][8])
}

func TestPublicViewAndRegister(t *testing.T) {
	f := newFixture(true)
	occ := f.occurrence(intPtr(3))
	ctx := context.Background()

	reg, err := f.svc.PublicRegister(ctx, occ.ID, PublicRegisterInput{GuestName: "Ana", GuestEmail: "ana@example.org", PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, f.tenant, reg.TenantID)
	assert.Equal(t, models.RegistrationConfirmed, reg.Status)

	view, err := f.svc.Public(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, "Marriage Seminar", view.ScheduleName)
	require.NotNil(t, view.SpotsLeft)
	assert.Equal(t, 1, *view.SpotsLeft)
	assert.True(t, view.RegistrationOpen)

	_, err = f.svc.Public(ctx, uuid.New())
	assert.Error(t, err)
}
