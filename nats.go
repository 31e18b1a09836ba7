package counsel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Interaction subjects.
const (
	DefaultInteractionSubject = "counsel.interactions"

	// DefaultFlushTimeout bounds a flush when the caller's context has no deadline.
	DefaultFlushTimeout = 5 * time.Second
)

// NATSSinkOpts configures NATSSink. Zero values use defaults.
type NATSSinkOpts struct {
	// Subject is the global subject; per-capability subjects extend it with
	// the capability name.
	Subject string

	// Flush waits for the server to acknowledge each publish.
	Flush bool

	// FlushTimeout bounds the flush when the caller's context has no deadline.
	FlushTimeout time.Duration
}

// NATSSink publishes each interaction as a JSON InteractionEvent to
// <subject>.<capability> and to <subject>.
type NATSSink struct {
	nc           *nats.Conn
	subject      string
	flush        bool
	flushTimeout time.Duration
}

// NewNATSSink creates a sink on nc. Pass nil for opts to use defaults.
func NewNATSSink(nc *nats.Conn, opts *NATSSinkOpts) *NATSSink {
	s := &NATSSink{nc: nc, subject: DefaultInteractionSubject, flushTimeout: DefaultFlushTimeout}
	if opts != nil {
		if opts.Subject != "" {
			s.subject = opts.Subject
		}
		s.flush = opts.Flush
		if opts.FlushTimeout > 0 {
			s.flushTimeout = opts.FlushTimeout
		}
	}
	return s
}

// CapabilitySubject returns the subject interactions answered by name go to.
func (s *NATSSink) CapabilitySubject(name CapabilityName) string {
	return s.subject + "." + string(name)
}

// Subject returns the global subject.
func (s *NATSSink) Subject() string {
	return s.subject
}

// Record implements Sink.
func (s *NATSSink) Record(ctx context.Context, q Query, resp *StructuredResponse) error {
	if s.nc == nil {
		return errors.New("nats: no connection")
	}

	data, err := json.Marshal(NewInteractionEvent(ctx, q, resp))
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}

	for _, subject := range []string{s.CapabilitySubject(resp.Capability), s.subject} {
		if err := s.nc.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", subject, err)
		}
	}

	if s.flush {
		flushCtx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			flushCtx, cancel = context.WithTimeout(ctx, s.flushTimeout)
			defer cancel()
		}
		if err := s.nc.FlushWithContext(flushCtx); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}
	return nil
}

var _ Sink = (*NATSSink)(nil)
