package mailer

import (
	"context"

	"github.com/go-logr/logr"
	goerrors "github.com/goliatone/go-errors"
)

// Service renders messages and delivers them through a Transport.
type Service struct {
	renderer  *Renderer
	transport Transport
	from      string
	logger    logr.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l logr.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service sending from the given address.
func New(renderer *Renderer, transport Transport, from string, opts ...Option) *Service {
	s := &Service{
		renderer:  renderer,
		transport: transport,
		from:      from,
		logger:    logr.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Send renders msg and delivers it.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid mail message")
	}

	data := make(map[string]any, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["subject"] = msg.Subject

	html, err := s.renderer.Render(msg.Template, data)
	if err != nil {
		return err
	}

	env := Envelope{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    html,
	}

	if err := s.transport.Deliver(ctx, env); err != nil {
		s.logger.Error(err, "mail delivery failed", "template", msg.Template, "to", msg.To)
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to deliver mail")
	}

	s.logger.V(1).Info("mail delivered", "template", msg.Template, "to", msg.To)
	return nil
}
