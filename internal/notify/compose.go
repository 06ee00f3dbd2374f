package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/queue"
)

// Enqueuer accepts rendered email jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

type message struct {
	subject string
	body    *template.Template
}

var layout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 8px;">
<h2 style="color: #333;">{{.Title}}</h2>
<p>Hello {{.Name}},</p>
{{template "content" .}}
<p>{{.From}}</p>
</div>`

func mustMessage(subject, content string) message {
	t := template.Must(template.New("email").Parse(layout))
	template.Must(t.New("content").Parse(content))
	return message{subject: subject, body: t}
}

var messages = map[string]message{
	models.EmailTypeRegistrationConfirmed: mustMessage("You're registered: %s",
		`<p>Your registration for <strong>{{.Event}}</strong> on {{.When}} is confirmed{{if gt .PartySize 1}} for a party of {{.PartySize}}{{end}}.</p>
{{with .Location}}<p>Location: {{.}}</p>{{end}}`),
	models.EmailTypeRegistrationWaitlisted: mustMessage("You're on the waitlist: %s",
		`<p><strong>{{.Event}}</strong> on {{.When}} is full. You are number {{.Position}} on the waitlist and we will email you if a spot opens up.</p>`),
	models.EmailTypeWaitlistPromoted: mustMessage("A spot opened up: %s",
		`<p>Good news! A spot opened up for <strong>{{.Event}}</strong> on {{.When}} and your registration is now confirmed.</p>
{{with .Location}}<p>Location: {{.}}</p>{{end}}`),
	models.EmailTypeOccurrenceCancelled: mustMessage("Cancelled: %s",
		`<p><strong>{{.Event}}</strong> on {{.When}} has been cancelled.</p>
{{with .Reason}}<p>Reason: {{.}}</p>{{end}}
<p>Your registration has been released. We are sorry for the inconvenience.</p>`),
}

type view struct {
	Title     string
	Name      string
	Event     string
	When      string
	Location  string
	PartySize int
	Position  int
	Reason    string
	From      string
}

// Composer renders events into emails and queues them for the worker.
type Composer struct {
	queue    Enqueuer
	fromName string
}

// NewComposer creates a composer. fromName signs every message.
func NewComposer(q Enqueuer, fromName string) *Composer {
	return &Composer{queue: q, fromName: fromName}
}

// Notify implements Notifier. Events without a recipient address are dropped.
func (c *Composer) Notify(ctx context.Context, ev Event) error {
	payload, ok, err := c.Render(ev)
	if err != nil || !ok {
		return err
	}
	return c.queue.EnqueueEmail(ctx, payload)
}

// Render builds the email job for ev. ok is false when there is nobody to send it to.
func (c *Composer) Render(ev Event) (queue.EmailPayload, bool, error) {
	msg, known := messages[ev.Type]
	if !known {
		return queue.EmailPayload{}, false, fmt.Errorf("unknown email type %q", ev.Type)
	}
	if ev.Registration == nil || ev.Occurrence == nil || ev.Registration.ContactEmail() == "" {
		return queue.EmailPayload{}, false, nil
	}
	reg, occ := ev.Registration, ev.Occurrence

	event := occ.ScheduleName
	if event == "" {
		event = "your event"
	}
	v := view{
		Name:      reg.DisplayName(),
		Event:     event,
		When:      occ.StartAt.Format("Monday, January 2, 2006 at 3:04 PM MST"),
		PartySize: reg.PartySize,
		Reason:    ev.Reason,
		From:      c.fromName,
	}
	if occ.Location != nil {
		v.Location = *occ.Location
	}
	if reg.WaitlistPosition != nil {
		v.Position = *reg.WaitlistPosition
	}
	subject := fmt.Sprintf(msg.subject, event)
	v.Title = subject

	var body bytes.Buffer
	if err := msg.body.Execute(&body, v); err != nil {
		return queue.EmailPayload{}, false, fmt.Errorf("render %s: %w", ev.Type, err)
	}
	occID, regID := occ.ID, reg.ID
	return queue.EmailPayload{
		EmailType:      ev.Type,
		TenantID:       ev.TenantID,
		OccurrenceID:   &occID,
		RegistrationID: &regID,
		RecipientEmail: reg.ContactEmail(),
		RecipientName:  reg.DisplayName(),
		Subject:        subject,
		BodyHTML:       body.String(),
	}, true, nil
}
