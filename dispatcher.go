package counsel

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/capitan"
)

// Dispatcher resolves a routed capability from the registry and executes it.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  DefaultTimeouts().Dispatch,
	}
}

// WithTimeout bounds capability execution.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	d.timeout = timeout
	return d
}

// Dispatch executes the capability registered under name and returns its raw
// output unmodified. A name missing from the registry fails closed.
func (d *Dispatcher) Dispatch(ctx context.Context, name CapabilityName, q EnrichedQuery) (*RawResponse, error) {
	capability, ok := d.registry.Lookup(name)
	if !ok {
		capitan.Error(ctx, CapabilityMissing,
			FieldTraceID.Field(TraceIDFromContext(ctx)),
			FieldCapability.Field(string(name)),
		)
		return nil, newStageError("dispatch", ErrCapabilityNotFound, errors.New(string(name)))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := capability.Execute(callCtx, q)
	if err != nil {
		return nil, upstreamError("dispatch", err)
	}
	if raw == nil {
		return nil, newStageError("dispatch", ErrUpstreamModel, errors.New("capability returned no response"))
	}

	capitan.Emit(ctx, CapabilityDispatched,
		FieldTraceID.Field(TraceIDFromContext(ctx)),
		FieldCapability.Field(string(name)),
		FieldSourceCount.Field(len(raw.Sources)),
		FieldContentSize.Field(len(raw.Text)),
	)

	return raw, nil
}
