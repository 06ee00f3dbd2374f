// Package actions serves the form-metadata action endpoint: POST /actions/{handlerId}. Handler ids are
// parsed into a closed set of kinds, each bound to a typed request and handler when the dispatcher is built.
package actions

import "errors"

// ErrUnknownAction is returned for a handler id outside the known set.
var ErrUnknownAction = errors.New("unknown action")

// Kind identifies one action.
type Kind int

const (
	MinistrySave Kind = iota
	ScheduleSave
	OccurrenceCancel
	OccurrenceStatus
	RegistrationStatus
	TeamSave

	numKinds
)

var kindIDs = [numKinds]string{
	MinistrySave:       "admin-community.ministries.manage.save",
	ScheduleSave:       "admin-community.schedules.manage.save",
	OccurrenceCancel:   "admin-community.occurrences.manage.cancel",
	OccurrenceStatus:   "admin-community.occurrences.manage.status",
	RegistrationStatus: "admin-community.registrations.manage.status",
	TeamSave:           "admin-community.teams.manage.save",
}

// String returns the handler id of k.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindIDs[k]
}

// ParseKind maps a handler id to its kind.
func ParseKind(id string) (Kind, error) {
	for k, s := range kindIDs {
		if s == id {
			return Kind(k), nil
		}
	}
	return 0, ErrUnknownAction
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}
