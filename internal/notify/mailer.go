package notify

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/shepherd-hub/backend/config"
)

// Mail is one outgoing message.
type Mail struct {
	To       string
	ToName   string
	Subject  string
	BodyHTML string
}

// Sender delivers mail.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

// NewSMTPMailer creates a mailer from the email config.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}
}

// Send implements Sender. gomail has no context support, so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	if mail.ToName != "" {
		msg.SetAddressHeader("To", mail.To, mail.ToName)
	} else {
		msg.SetHeader("To", mail.To)
	}
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/html", mail.BodyHTML)
	return m.dialer.DialAndSend(msg)
}

// LogMailer only logs messages. Used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send implements Sender.
func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.logger.Info("smtp not configured, email not sent", zap.String("to", mail.To), zap.String("subject", mail.Subject))
	return nil
}
