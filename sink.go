package counsel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sink receives a record of every completed interaction.
// Delivery is at-most-once and best-effort: sink errors are reported as
// signals and never reach the caller of ProcessQuery.
type Sink interface {
	Record(ctx context.Context, q Query, resp *StructuredResponse) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, q Query, resp *StructuredResponse) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, q Query, resp *StructuredResponse) error {
	return f(ctx, q, resp)
}

// NoopSink discards every interaction.
type NoopSink struct{}

// Record does nothing.
func (NoopSink) Record(context.Context, Query, *StructuredResponse) error {
	return nil
}

// MultiSink delivers each interaction to every sink in order.
// A failing sink does not stop delivery to the rest.
type MultiSink []Sink

// Record delivers to all sinks and joins their errors.
func (m MultiSink) Record(ctx context.Context, q Query, resp *StructuredResponse) error {
	var errs []error
	for i, s := range m {
		if err := callSink(ctx, s, q, resp); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// InteractionEvent is the serialized form of an interaction published by sinks.
type InteractionEvent struct {
	TraceID         string    `json:"traceId"`
	UserID          string    `json:"userId"`
	SessionID       string    `json:"sessionId"`
	Query           string    `json:"query"`
	Agent           string    `json:"agent"`
	Confidence      float64   `json:"confidence"`
	SourceCount     int       `json:"sourceCount"`
	Recommendations []string  `json:"recommendations"`
	ActionItems     []string  `json:"actionItems"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewInteractionEvent builds the event for q and resp.
func NewInteractionEvent(ctx context.Context, q Query, resp *StructuredResponse) InteractionEvent {
	return InteractionEvent{
		TraceID:         TraceIDFromContext(ctx),
		UserID:          q.UserID,
		SessionID:       q.SessionID,
		Query:           q.Text,
		Agent:           string(resp.Capability),
		Confidence:      resp.Confidence,
		SourceCount:     len(resp.Sources),
		Recommendations: append([]string{}, resp.Recommendations...),
		ActionItems:     append([]string{}, resp.ActionItems...),
		Timestamp:       time.Now().UTC(),
	}
}

// recordSafely delivers to s and tags any failure with ErrSink.
func recordSafely(ctx context.Context, s Sink, q Query, resp *StructuredResponse) error {
	if err := callSink(ctx, s, q, resp); err != nil {
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	return nil
}

// callSink calls s.Record, converting a panic into an error.
func callSink(ctx context.Context, s Sink, q Query, resp *StructuredResponse) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Record(ctx, q, resp)
}

var (
	_ Sink = NoopSink{}
	_ Sink = MultiSink(nil)
)
