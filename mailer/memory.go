package mailer

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
)

// LogTransport writes envelopes to a logger instead of sending them, for
// local development.
type LogTransport struct {
	logger logr.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(l logr.Logger) *LogTransport {
	return &LogTransport{logger: l}
}

// Deliver implements Transport.
func (t *LogTransport) Deliver(_ context.Context, env Envelope) error {
	t.logger.Info("mail", "from", env.From, "to", env.To, "subject", env.Subject, "body", env.HTML)
	return nil
}

// MemoryTransport keeps delivered envelopes in memory.
type MemoryTransport struct {
	mu   sync.Mutex
	sent []Envelope
	err  error
}

// NewMemoryTransport creates an empty MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

// FailWith makes every following delivery return err.
func (t *MemoryTransport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Deliver implements Transport.
func (t *MemoryTransport) Deliver(_ context.Context, env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, env)
	return nil
}

// Sent returns a copy of the delivered envelopes.
func (t *MemoryTransport) Sent() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Envelope(nil), t.sent...)
}

// SentTo returns the envelopes delivered to address.
func (t *MemoryTransport) SentTo(address string) []Envelope {
	var out []Envelope
	for _, env := range t.Sent() {
		if env.To == address {
			out = append(out, env)
		}
	}
	return out
}

// Reset forgets every delivered envelope.
func (t *MemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}
