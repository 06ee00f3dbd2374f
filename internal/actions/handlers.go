package actions

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/ministries"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/schedules"
	"github.com/shepherd-hub/backend/internal/teams"
	"github.com/shepherd-hub/backend/pkg/validation"
)

const modeCreate = "create"

// SaveRequest is the create-or-edit form envelope. ID is required when editing.
type SaveRequest[T any] struct {
	Mode   string     `json:"mode" binding:"required,oneof=create edit"`
	ID     *uuid.UUID `json:"id"`
	Values T          `json:"values"`
}

func (r SaveRequest[T]) editID() (uuid.UUID, error) {
	if r.ID == nil {
		return uuid.Nil, validation.NewError("id", "is required when editing")
	}
	return *r.ID, nil
}

func saveMinistry(svc Ministries) func(context.Context, uuid.UUID, SaveRequest[ministries.Input]) (Outcome, error) {
	return func(ctx context.Context, tenantID uuid.UUID, req SaveRequest[ministries.Input]) (Outcome, error) {
		if req.Mode == modeCreate {
			m, err := svc.Create(ctx, tenantID, req.Values)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Status: http.StatusCreated, Message: "Ministry created", Data: m,
				RedirectURL: "/admin/community/ministries/" + m.ID.String()}, nil
		}
		id, err := req.editID()
		if err != nil {
			return Outcome{}, err
		}
		m, err := svc.Update(ctx, tenantID, id, req.Values)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Ministry updated", Data: m, RedirectURL: "/admin/community/ministries/" + m.ID.String()}, nil
	}
}

func saveSchedule(svc Schedules) func(context.Context, uuid.UUID, SaveRequest[schedules.Input]) (Outcome, error) {
	return func(ctx context.Context, tenantID uuid.UUID, req SaveRequest[schedules.Input]) (Outcome, error) {
		if req.Mode == modeCreate {
			s, err := svc.Create(ctx, tenantID, req.Values)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Status: http.StatusCreated, Message: "Schedule created", Data: s,
				RedirectURL: "/admin/community/scheduler/schedules/" + s.ID.String()}, nil
		}
		id, err := req.editID()
		if err != nil {
			return Outcome{}, err
		}
		s, err := svc.Update(ctx, tenantID, id, req.Values)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Schedule updated", Data: s, RedirectURL: "/admin/community/scheduler/schedules/" + s.ID.String()}, nil
	}
}

// CancelOccurrenceRequest cancels one occurrence.
type CancelOccurrenceRequest struct {
	ID     uuid.UUID `json:"id" binding:"required"`
	Reason string    `json:"reason" binding:"required,max=1000"`
}

func cancelOccurrence(svc Occurrences) func(context.Context, uuid.UUID, CancelOccurrenceRequest) (Outcome, error) {
	return func(ctx context.Context, tenantID uuid.UUID, req CancelOccurrenceRequest) (Outcome, error) {
		o, err := svc.Cancel(ctx, tenantID, req.ID, req.Reason)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Occurrence cancelled", Data: o}, nil
	}
}

// OccurrenceStatusRequest advances an occurrence's status.
type OccurrenceStatusRequest struct {
	ID     uuid.UUID               `json:"id" binding:"required"`
	Status models.OccurrenceStatus `json:"status" binding:"required,oneof=in_progress completed cancelled"`
	Reason string                  `json:"reason" binding:"max=1000"`
}

func setOccurrenceStatus(svc Occurrences) func(context.Context, uuid.UUID, OccurrenceStatusRequest) (Outcome, error) {
	return func(ctx context.Context, tenantID uuid.UUID, req OccurrenceStatusRequest) (Outcome, error) {
		o, err := svc.Transition(ctx, tenantID, req.ID, req.Status, req.Reason)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Occurrence status updated", Data: o}, nil
	}
}

// RegistrationStatusRequest confirms or cancels a registration.
type RegistrationStatusRequest struct {
	ID     uuid.UUID                 `json:"id" binding:"required"`
	Status models.RegistrationStatus `json:"status" binding:"required,oneof=confirmed cancelled"`
}

func setRegistrationStatus(svc Registrations) func(context.Context, uuid.UUID, RegistrationStatusRequest) (Outcome, error) {
	return func(ctx context.Context, tenantID uuid.UUID, req RegistrationStatusRequest) (Outcome, error) {
		res, err := svc.UpdateStatus(ctx, tenantID, req.ID, req.Status)
		if err != nil {
			return Outcome{}, err
		}
		msg := "Registration updated"
		if n := len(res.Promoted); n == 1 {
			msg = "Registration updated, 1 promoted from the waitlist"
		} else if n > 1 {
			msg = "Registration updated, " + strconv.Itoa(n) + " promoted from the waitlist"
		}
		return Outcome{Message: msg, Data: res}, nil
	}
}

// TeamSaveRequest adds a member to a roster or updates their role and status.
type TeamSaveRequest struct {
	MinistryID uuid.UUID       `json:"ministry_id" binding:"required"`
	Values     teams.SaveInput `json:"values"`
}

func saveTeamMember(svc Teams) func(context.Context, uuid.UUID, TeamSaveRequest) (Outcome, error) {
	return func(ctx context.Context, tenantID uuid.UUID, req TeamSaveRequest) (Outcome, error) {
		tm, created, err := svc.Save(ctx, tenantID, req.MinistryID, req.Values)
		if err != nil {
			return Outcome{}, err
		}
		if created {
			return Outcome{Status: http.StatusCreated, Message: "Team member added", Data: tm}, nil
		}
		return Outcome{Message: "Team member updated", Data: tm}, nil
	}
}
