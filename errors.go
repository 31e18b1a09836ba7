package counsel

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the pipeline matches exactly one of
// these with errors.Is.
var (
	// ErrInitialization is returned when the registry or a model synapse cannot be constructed.
	ErrInitialization = errors.New("initialization failed")

	// ErrInvalidQuery is returned for a query with no text.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRouting is returned when classification names no known capability.
	ErrRouting = errors.New("routing failed")

	// ErrCapabilityNotFound signals a routed name missing from the registry.
	// It cannot happen while routing validates names and indicates a defect.
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrUpstreamModel is returned when a model call fails or its reply is unusable.
	ErrUpstreamModel = errors.New("upstream call failed")

	// ErrUpstreamTimeout is returned when a model call exceeds its bound.
	ErrUpstreamTimeout = errors.New("upstream call timed out")

	// ErrSink is reported (never returned to callers) when interaction delivery fails.
	ErrSink = errors.New("interaction sink failed")

	// ErrProcessingFailed is the single failure signal exposed by ProcessQuery.
	ErrProcessingFailed = errors.New("processing failed")
)

// StageError records where and why a request failed.
type StageError struct {
	Op    string // step that failed: receive, retrieve, route, dispatch, enhance, log
	Stage Stage  // last stage the request reached
	Kind  error  // one of the Err* kinds
	Err   error  // underlying cause
}

func newStageError(op string, kind, err error) *StageError {
	return &StageError{Op: op, Kind: kind, Err: err}
}

// upstreamError classifies a model call failure as a timeout or a model error.
func upstreamError(op string, err error) *StageError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newStageError(op, ErrUpstreamTimeout, err)
	}
	return newStageError(op, ErrUpstreamModel, err)
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
