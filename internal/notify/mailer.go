package notify

import (
	"context"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"

	"github.com/dmagro/poagov/internal/config"
)

// Mailer sends one plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers over SMTP with mandatory TLS and PLAIN auth. Every
// Send dials its own client, so concurrent sends do not share a connection.
type SMTPMailer struct {
	cfg config.Email
}

func NewSMTPMailer(cfg config.Email) (*SMTPMailer, error) {
	m := &SMTPMailer{cfg: cfg}
	if _, err := m.client(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	client, err := mail.NewClient(m.cfg.SMTPHost,
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create smtp client for %s", m.cfg.SMTPHost)
	}
	return client, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return errors.Wrapf(err, "invalid sender %q", m.cfg.From)
	}
	if err := msg.To(to); err != nil {
		return errors.Wrapf(err, "invalid recipient %q", to)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := m.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send email to %s", to)
	}
	return nil
}
