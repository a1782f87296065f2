// Package mailer renders templated emails and hands them to a transport.
package mailer

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Message is a mail notification before rendering. Template is the template
// name without extension.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

// Validate checks the message can be delivered.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.To, validation.Required, is.EmailFormat),
		validation.Field(&m.Subject, validation.Required),
		validation.Field(&m.Template, validation.Required),
	)
}

// Envelope is a rendered message ready for delivery.
type Envelope struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Transport delivers rendered envelopes.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
}
