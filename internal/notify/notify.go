// Package notify turns scheduler events into queued emails and delivers them from the worker.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

// Event is something a registrant should hear about.
type Event struct {
	Type         string // models.EmailType*
	TenantID     uuid.UUID
	Occurrence   *models.Occurrence
	Registration *models.Registration
	Reason       string // cancellation reason
}

// Notifier accepts events. Implementations must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }
