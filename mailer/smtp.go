package mailer

import (
	"context"
	"time"

	"gopkg.in/mail.v2"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// RequireTLS fails delivery when the server does not offer STARTTLS.
	RequireTLS bool
	Timeout    time.Duration
}

// SMTPTransport delivers envelopes over SMTP.
type SMTPTransport struct {
	dialer *mail.Dialer
}

// NewSMTPTransport creates a transport for cfg.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.RequireTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	return &SMTPTransport{dialer: d}
}

// Deliver implements Transport.
func (t *SMTPTransport) Deliver(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.dialer.DialAndSend(buildMessage(env))
}

func buildMessage(env Envelope) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", env.From)
	m.SetHeader("To", env.To)
	m.SetHeader("Subject", env.Subject)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/html", env.HTML)
	return m
}
