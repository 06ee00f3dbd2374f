package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/ministries"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/internal/registrations"
	"github.com/shepherd-hub/backend/internal/schedules"
	"github.com/shepherd-hub/backend/internal/teams"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Ministries is the part of the ministries service the actions use.
type Ministries interface {
	Create(ctx context.Context, tenantID uuid.UUID, in ministries.Input) (*models.Ministry, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in ministries.Input) (*models.Ministry, error)
}

// Schedules is the part of the schedules service the actions use.
type Schedules interface {
	Create(ctx context.Context, tenantID uuid.UUID, in schedules.Input) (*models.Schedule, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in schedules.Input) (*models.Schedule, error)
}

// Occurrences is the part of the occurrences service the actions use.
type Occurrences interface {
	Cancel(ctx context.Context, tenantID, id uuid.UUID, reason string) (*models.Occurrence, error)
	Transition(ctx context.Context, tenantID, id uuid.UUID, to models.OccurrenceStatus, reason string) (*models.Occurrence, error)
}

// Registrations is the part of the registrations service the actions use.
type Registrations interface {
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, to models.RegistrationStatus) (*registrations.StatusResult, error)
}

// Teams is the part of the teams service the actions use.
type Teams interface {
	Save(ctx context.Context, tenantID, ministryID uuid.UUID, in teams.SaveInput) (*models.TeamMember, bool, error)
}

// Deps are the services actions are bound to.
type Deps struct {
	Ministries    Ministries
	Schedules     Schedules
	Occurrences   Occurrences
	Registrations Registrations
	Teams         Teams
}

// Outcome is what a successful action reports back.
type Outcome struct {
	Status      int
	Message     string
	RedirectURL string
	Data        interface{}
}

type handlerFunc func(ctx context.Context, tenantID uuid.UUID, body []byte) (Outcome, error)

// bind decodes and validates the body into T once, then calls fn.
func bind[T any](fn func(ctx context.Context, tenantID uuid.UUID, req T) (Outcome, error)) handlerFunc {
	return func(ctx context.Context, tenantID uuid.UUID, body []byte) (Outcome, error) {
		var req T
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return Outcome{}, &decodeError{err: err}
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			if fields := validation.FieldErrors(err); fields != nil {
				return Outcome{}, &validation.Error{Fields: formFields(fields)}
			}
			return Outcome{}, err
		}
		return fn(ctx, tenantID, req)
	}
}

// formFields keys errors on the form's own field names, matching the keys services report for
// the same values ("values.code" becomes "code").
func formFields(fields response.FieldErrors) response.FieldErrors {
	out := make(response.FieldErrors, len(fields))
	for k, v := range fields {
		out[strings.TrimPrefix(k, "values.")] = v
	}
	return out
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "invalid request: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Dispatcher runs actions by kind.
type Dispatcher struct {
	handlers [numKinds]handlerFunc
	logger   *zap.Logger
}

// NewDispatcher binds every kind to its handler.
func NewDispatcher(deps Deps, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{logger: logger}
	d.handlers = [numKinds]handlerFunc{
		MinistrySave:       bind(saveMinistry(deps.Ministries)),
		ScheduleSave:       bind(saveSchedule(deps.Schedules)),
		OccurrenceCancel:   bind(cancelOccurrence(deps.Occurrences)),
		OccurrenceStatus:   bind(setOccurrenceStatus(deps.Occurrences)),
		RegistrationStatus: bind(setRegistrationStatus(deps.Registrations)),
		TeamSave:           bind(saveTeamMember(deps.Teams)),
	}
	return d
}

// Dispatch runs kind against body and always returns a complete envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, tenantID uuid.UUID, body []byte) response.ActionResult {
	if kind < 0 || kind >= numKinds {
		return response.ActionResult{Status: http.StatusNotFound, Message: ErrUnknownAction.Error()}
	}
	out, err := d.handlers[kind](ctx, tenantID, body)
	if err != nil {
		return d.failure(kind, err)
	}
	if out.Status == 0 {
		out.Status = http.StatusOK
	}
	return response.ActionResult{
		Success:     true,
		Status:      out.Status,
		Message:     out.Message,
		RedirectURL: out.RedirectURL,
		Data:        out.Data,
	}
}

func (d *Dispatcher) failure(kind Kind, err error) response.ActionResult {
	res := response.ActionResult{Message: err.Error()}
	var verr *validation.Error
	var derr *decodeError
	switch {
	case errors.As(err, &verr):
		res.Status, res.Message, res.Errors = http.StatusUnprocessableEntity, "Please correct the highlighted fields", verr.Fields
	case errors.As(err, &derr):
		res.Status = http.StatusBadRequest
	case errors.Is(err, ministries.ErrNotFound), errors.Is(err, schedules.ErrNotFound),
		errors.Is(err, occurrences.ErrNotFound), errors.Is(err, registrations.ErrNotFound),
		errors.Is(err, members.ErrNotFound), errors.Is(err, teams.ErrNotOnTeam):
		res.Status = http.StatusNotFound
	case errors.Is(err, ministries.ErrDuplicateCode):
		res.Status, res.Errors = http.StatusConflict, response.FieldErrors{"code": err.Error()}
	case errors.Is(err, ministries.ErrCodeImmutable), errors.Is(err, occurrences.ErrInvalidTransition),
		errors.Is(err, registrations.ErrInvalidTransition), errors.Is(err, registrations.ErrCapacityExceeded),
		errors.Is(err, teams.ErrAlreadyOnTeam):
		res.Status = http.StatusConflict
	case errors.Is(err, occurrences.ErrReasonRequired):
		res.Status, res.Errors = http.StatusUnprocessableEntity, response.FieldErrors{"reason": validation.ErrFieldRequired}
	case errors.Is(err, teams.ErrInvalidRole), errors.Is(err, teams.ErrInvalidStatus):
		res.Status = http.StatusBadRequest
	default:
		d.logger.Error("action failed", zap.String("action", kind.String()), zap.Error(err))
		res.Status, res.Message = http.StatusInternalServerError, fmt.Sprintf("Could not complete %s, please try again", kind)
	}
	return res
}
