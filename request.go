package counsel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is a state of the per-request pipeline.
// Transitions only move forward; Failed is absorbing.
type Stage int

const (
	StageReceived Stage = iota
	StageContextRetrieved
	StageRouted
	StageDispatched
	StageEnhanced
	StageLogged
	StageCompleted
	StageFailed
)

var stageNames = [...]string{
	StageReceived:         "received",
	StageContextRetrieved: "context_retrieved",
	StageRouted:           "routed",
	StageDispatched:       "dispatched",
	StageEnhanced:         "enhanced",
	StageLogged:           "logged",
	StageCompleted:        "completed",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// StageRecord captures the execution of one pipeline step.
type StageRecord struct {
	Op        string
	Stage     Stage // stage reached, or StageFailed
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Request carries one query through the pipeline.
// A Request is owned by a single pipeline run and is not safe for concurrent use.
type Request struct {
	TraceID    string
	Query      Query
	Context    ContextBundle
	Capability CapabilityName
	Historical HistoricalContext
	Raw        *RawResponse
	Response   *StructuredResponse

	stage   Stage
	failure *StageError
	records []StageRecord
}

// NewRequest creates a Request in the Received stage with a fresh trace ID.
func NewRequest(q Query) *Request {
	return &Request{
		TraceID: uuid.New().String(),
		Query:   q,
		stage:   StageReceived,
	}
}

// Stage returns the current stage.
func (r *Request) Stage() Stage {
	return r.stage
}

// Failure returns the error that moved the request to Failed, if any.
func (r *Request) Failure() *StageError {
	return r.failure
}

// Records returns the step records in execution order.
func (r *Request) Records() []StageRecord {
	records := make([]StageRecord, len(r.records))
	copy(records, r.records)
	return records
}

// advance moves the request forward to next.
func (r *Request) advance(next Stage) error {
	if r.stage.Terminal() {
		return fmt.Errorf("request %s: cannot leave terminal stage %s", r.TraceID, r.stage)
	}
	if next <= r.stage || next == StageFailed {
		return fmt.Errorf("request %s: illegal transition %s -> %s", r.TraceID, r.stage, next)
	}
	r.stage = next
	return nil
}

// fail moves the request to Failed, stamping err with the last stage reached.
func (r *Request) fail(err *StageError) {
	if r.stage.Terminal() {
		return
	}
	err.Stage = r.stage
	r.failure = err
	r.stage = StageFailed
}

func (r *Request) addRecord(rec StageRecord) {
	r.records = append(r.records, rec)
}

// Context key for the request trace ID.
type traceKeyType struct{}

var traceKey = traceKeyType{}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey, traceID)
}

// TraceIDFromContext returns the trace ID carried by ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceKey).(string)
	return id
}
