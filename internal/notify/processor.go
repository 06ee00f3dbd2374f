package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/queue"
)

// Jobs is the queue side the processor consumes.
type Jobs interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogStore records delivery outcomes.
type LogStore interface {
	Record(ctx context.Context, l *models.EmailLog) error
}

// Processor delivers queued email jobs and logs the outcome.
type Processor struct {
	jobs    Jobs
	sender  Sender
	logs    LogStore
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewProcessor creates an email job processor.
func NewProcessor(jobs Jobs, sender Sender, logs LogStore, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{jobs: jobs, sender: sender, logs: logs, logger: logger, backoff: queue.RetryBackoff, now: time.Now}
}

// Process delivers one job. A send failure is returned so the job is retried; the failure is only logged
// to email_logs on the last attempt.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	entry := &models.EmailLog{
		TenantID:       payload.TenantID,
		OccurrenceID:   payload.OccurrenceID,
		RegistrationID: payload.RegistrationID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}

	sendErr := p.sender.Send(ctx, Mail{
		To:       payload.RecipientEmail,
		ToName:   payload.RecipientName,
		Subject:  payload.Subject,
		BodyHTML: payload.BodyHTML,
	})
	if sendErr != nil {
		if job.Attempt+1 < queue.MaxRetries {
			return fmt.Errorf("send: %w", sendErr)
		}
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		at := p.now()
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &at
	}
	if err := p.logs.Record(ctx, entry); err != nil {
		p.logger.Error("record email log failed", zap.Error(err), zap.String("job_id", job.ID))
	}
	if sendErr != nil {
		return fmt.Errorf("send: %w", sendErr)
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
