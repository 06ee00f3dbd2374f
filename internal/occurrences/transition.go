package occurrences

import "github.com/shepherd-hub/backend/internal/models"

var transitions = map[models.OccurrenceStatus][]models.OccurrenceStatus{
	models.OccurrenceScheduled:  {models.OccurrenceInProgress, models.OccurrenceCompleted, models.OccurrenceCancelled},
	models.OccurrenceInProgress: {models.OccurrenceCompleted},
}

// CanTransition reports whether an occurrence may move from one status to another.
// Completed and cancelled are terminal. No check is made against the wall clock.
func CanTransition(from, to models.OccurrenceStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
