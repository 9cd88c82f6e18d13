// Package outbox drains the queued email outbox and delivers each row
// through a Mailer. Delivery is retried with backoff; rows that keep
// failing are marked failed, and bounce-shaped provider errors suppress
// the contact so it is never emailed again.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"polyvox.org/internal/obs"
)

const (
	// DefaultBatchLimit bounds one drain pass.
	DefaultBatchLimit = 25
	maxAttempts       = 3
	retryBackoff      = 15 * time.Minute
)

var bouncePattern = regexp.MustCompile(`(?i)bounce|invalid|undeliverable`)

// Message is one queued outbox row.
type Message struct {
	ID        string
	ContactID string
	ToEmail   string
	Subject   string
	Template  string
	Payload   map[string]any
	Attempts  int
}

// Store is the persistence surface for outbox rows and contacts.
type Store interface {
	// DueMessages returns queued rows whose send_after has passed,
	// oldest first, up to limit.
	DueMessages(ctx context.Context, now time.Time, limit int) ([]Message, error)
	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id string, attempts int, at time.Time) error
	// MarkRetry requeues the row for a later attempt.
	MarkRetry(ctx context.Context, id string, attempts int, lastError string, sendAfter time.Time) error
	// MarkFailed retires the row permanently.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error

	// SuppressContact sets the contact's suppression flag.
	SuppressContact(ctx context.Context, contactID string) error
	// RecordContactBounce suppresses the contact and bumps its bounce count.
	RecordContactBounce(ctx context.Context, contactID string) error
	// MarkContactEmailed stamps the contact's last delivery time.
	MarkContactEmailed(ctx context.Context, contactID string, at time.Time) error
}

// Mailer delivers one rendered email. Success or failure is all the
// processor learns about the provider.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Summary reports one drain pass.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Processor drains the outbox.
type Processor struct {
	store  Store
	mailer Mailer
	limit  int
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithBatchLimit overrides the default drain batch size.
func WithBatchLimit(limit int) Option {
	return func(p *Processor) {
		if limit > 0 {
			p.limit = limit
		}
	}
}

// WithClock overrides the time source. Only intended for test use.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor constructs a Processor.
func NewProcessor(store Store, mailer Mailer, opts ...Option) (*Processor, error) {
	if store == nil {
		return nil, errors.New("outbox store is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	p := &Processor{store: store, mailer: mailer, limit: DefaultBatchLimit, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process drains one batch of due rows. Per-row failures are absorbed
// into the summary; only the initial queue read can fail the pass.
func (p *Processor) Process(ctx context.Context) (Summary, error) {
	now := p.now().UTC()
	queued, err := p.store.DueMessages(ctx, now, p.limit)
	if err != nil {
		return Summary{}, fmt.Errorf("load outbox: %w", err)
	}

	summary := Summary{Processed: len(queued)}
	for _, msg := range queued {
		attempts := msg.Attempts + 1
		if err := p.deliver(ctx, msg); err != nil {
			summary.Failed++
			p.recordFailure(ctx, msg, attempts, err, now)
			continue
		}
		if err := p.store.MarkSent(ctx, msg.ID, attempts, now); err != nil {
			obs.Warn("outbox: mark sent failed", map[string]any{"id": msg.ID, "error": err.Error()})
		}
		if msg.ContactID != "" {
			if err := p.store.MarkContactEmailed(ctx, msg.ContactID, now); err != nil {
				obs.Warn("outbox: stamp contact failed", map[string]any{"contact_id": msg.ContactID, "error": err.Error()})
			}
		}
		summary.Sent++
	}

	obs.CountOutbox("sent", summary.Sent)
	obs.CountOutbox("failed", summary.Failed)
	return summary, nil
}

func (p *Processor) deliver(ctx context.Context, msg Message) error {
	html, err := Render(msg.Template, msg.Payload)
	if err != nil {
		return err
	}
	return p.mailer.Send(ctx, msg.ToEmail, msg.Subject, html)
}

func (p *Processor) recordFailure(ctx context.Context, msg Message, attempts int, sendErr error, now time.Time) {
	message := sendErr.Error()
	if attempts >= maxAttempts {
		if err := p.store.MarkFailed(ctx, msg.ID, attempts, message); err != nil {
			obs.Warn("outbox: mark failed failed", map[string]any{"id": msg.ID, "error": err.Error()})
		}
	} else {
		if err := p.store.MarkRetry(ctx, msg.ID, attempts, message, now.Add(retryBackoff)); err != nil {
			obs.Warn("outbox: requeue failed", map[string]any{"id": msg.ID, "error": err.Error()})
		}
	}
	if msg.ContactID != "" && bouncePattern.MatchString(message) {
		if err := p.store.RecordContactBounce(ctx, msg.ContactID); err != nil {
			obs.Warn("outbox: record bounce failed", map[string]any{"contact_id": msg.ContactID, "error": err.Error()})
		}
	}
}

// Unsubscribe suppresses future email for the contact. Called only after
// a capability token has been verified.
func (p *Processor) Unsubscribe(ctx context.Context, contactID string) error {
	if contactID == "" {
		return errors.New("contact id is required")
	}
	return p.store.SuppressContact(ctx, contactID)
}
