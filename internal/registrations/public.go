package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

// PublicOccurrence is what the unauthenticated registration page shows.
type PublicOccurrence struct {
	ID                   uuid.UUID               `json:"id"`
	ScheduleID           uuid.UUID               `json:"schedule_id"`
	ScheduleName         string                  `json:"schedule_name"`
	MinistryName         string                  `json:"ministry_name"`
	Description          string                  `json:"description,omitempty"`
	StartAt              time.Time               `json:"start_at"`
	EndAt                time.Time               `json:"end_at"`
	Timezone             string                  `json:"timezone"`
	Location             *string                 `json:"location,omitempty"`
	LocationType         models.LocationType     `json:"location_type"`
	Status               models.OccurrenceStatus `json:"status"`
	Capacity             *int                    `json:"capacity,omitempty"`
	SpotsLeft            *int                    `json:"spots_left,omitempty"`
	WaitlistCount        int                     `json:"waitlist_count"`
	RegistrationRequired bool                    `json:"registration_required"`
	RegistrationOpen     bool                    `json:"registration_open"`
	FormSchema           []models.FormField      `json:"form_schema"`
	CoverPhotoURL        string                  `json:"cover_photo_url,omitempty"`
}

// PublicRegisterInput is a guest registration from the public page.
type PublicRegisterInput struct {
	GuestName     string                 `json:"guest_name" binding:"required,max=255"`
	GuestEmail    string                 `json:"guest_email" binding:"required,email,max=255"`
	GuestPhone    string                 `json:"guest_phone" binding:"max=50"`
	PartySize     int                    `json:"party_size" binding:"omitempty,min=1,max=50"`
	FormResponses map[string]interface{} `json:"form_responses"`
}

// Public returns the public view of an occurrence.
func (s *Service) Public(ctx context.Context, occurrenceID uuid.UUID) (*PublicOccurrence, error) {
	tenantID, err := s.store.TenantOf(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	occ, err := s.occurrences.Get(ctx, tenantID, occurrenceID)
	if err != nil {
		return nil, err
	}
	sc, err := s.schedules.Get(ctx, tenantID, occ.ScheduleID)
	if err != nil {
		return nil, err
	}
	view := &PublicOccurrence{
		ID:                   occ.ID,
		ScheduleID:           sc.ID,
		ScheduleName:         sc.Name,
		MinistryName:         occ.MinistryName,
		Description:          sc.Description,
		StartAt:              occ.StartAt,
		EndAt:                occ.EndAt,
		Timezone:             sc.Timezone,
		Location:             occ.Location,
		LocationType:         sc.LocationType,
		Status:               occ.Status,
		Capacity:             occ.Capacity,
		WaitlistCount:        occ.WaitlistCount,
		RegistrationRequired: sc.RegistrationRequired,
		RegistrationOpen:     isOpen(occ.Status),
		FormSchema:           sc.FormSchema,
		CoverPhotoURL:        sc.CoverPhotoURL,
	}
	if occ.Capacity != nil {
		left := *occ.Capacity - occ.RegisteredCount
		if left < 0 {
			left = 0
		}
		view.SpotsLeft = &left
	}
	return view, nil
}

// PublicRegister registers a guest through the public page.
func (s *Service) PublicRegister(ctx context.Context, occurrenceID uuid.UUID, in PublicRegisterInput) (*models.Registration, error) {
	tenantID, err := s.store.TenantOf(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, tenantID, occurrenceID, RegisterInput{
		GuestName:     in.GuestName,
		GuestEmail:    in.GuestEmail,
		GuestPhone:    in.GuestPhone,
		PartySize:     in.PartySize,
		FormResponses: in.FormResponses,
	})
}
