package counsel

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// stepFunc performs one pipeline step against a request.
type stepFunc func(ctx context.Context, r *Request) *StageError

// step is a pipz.Chainable[*Request] that runs one step, advances the
// request to its target stage and records the outcome.
type step struct {
	identity pipz.Identity
	op       string
	target   Stage
	run      stepFunc
}

func newStep(op, description string, target Stage, run stepFunc) *step {
	return &step{
		identity: pipz.NewIdentity(op, description),
		op:       op,
		target:   target,
		run:      run,
	}
}

// Process implements pipz.Chainable[*Request].
func (s *step) Process(ctx context.Context, r *Request) (*Request, error) {
	if r.Stage().Terminal() {
		return r, r.Failure()
	}

	start := time.Now()
	capitan.Emit(ctx, StepStarted,
		FieldTraceID.Field(r.TraceID),
		FieldOp.Field(s.op),
		FieldStage.Field(r.Stage().String()),
	)

	se := s.run(ctx, r)
	if se == nil && s.target > r.Stage() {
		if err := r.advance(s.target); err != nil {
			se = newStageError(s.op, ErrProcessingFailed, err)
		}
	}

	duration := time.Since(start)
	if se != nil {
		r.fail(se)
		r.addRecord(StageRecord{Op: s.op, Stage: StageFailed, Duration: duration, Timestamp: start, Error: se})
		capitan.Error(ctx, StepFailed,
			FieldTraceID.Field(r.TraceID),
			FieldOp.Field(s.op),
			FieldStage.Field(se.Stage.String()),
			FieldStepDuration.Field(duration),
			FieldError.Field(se),
		)
		return r, se
	}

	r.addRecord(StageRecord{Op: s.op, Stage: r.Stage(), Duration: duration, Timestamp: start})
	capitan.Emit(ctx, StepCompleted,
		FieldTraceID.Field(r.TraceID),
		FieldOp.Field(s.op),
		FieldStage.Field(r.Stage().String()),
		FieldStepDuration.Field(duration),
	)
	return r, nil
}

// Identity implements pipz.Chainable[*Request].
func (s *step) Identity() pipz.Identity {
	return s.identity
}

// Schema implements pipz.Chainable[*Request].
func (s *step) Schema() pipz.Node {
	return pipz.Node{Identity: s.identity, Type: "counsel-step"}
}

// Close implements pipz.Chainable[*Request].
func (s *step) Close() error {
	return nil
}

// receiveStep rejects queries with no text.
func receiveStep() *step {
	return newStep("receive", "Validate the incoming query", StageReceived,
		func(_ context.Context, r *Request) *StageError {
			if strings.TrimSpace(r.Query.Text) == "" {
				return newStageError("receive", ErrInvalidQuery, errors.New("query text is empty"))
			}
			return nil
		})
}

// retrieveStep attaches the context bundle.
func (o *Orchestrator) retrieveStep() *step {
	return newStep("retrieve", "Attach retrieved context", StageContextRetrieved,
		func(ctx context.Context, r *Request) *StageError {
			callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Retrieve)
			defer cancel()

			bundle, err := o.retriever.Retrieve(callCtx, r.Query.Text, Hints{
				UserID: r.Query.UserID,
				Goals:  r.Query.Goals,
			})
			if err != nil {
				return upstreamError("retrieve", err)
			}
			bundle = bundle.normalized()
			r.Context = bundle

			capitan.Emit(ctx, ContextRetrieved,
				FieldTraceID.Field(r.TraceID),
				FieldDocumentCount.Field(len(bundle.Documents)),
				FieldRelevance.Field(float32(bundle.RelevanceScore)),
			)
			return nil
		})
}

// routeStep classifies the query into a capability.
func (o *Orchestrator) routeStep() *step {
	return newStep("route", "Classify the query into a capability", StageRouted,
		func(ctx context.Context, r *Request) *StageError {
			name, err := o.router.Route(ctx, r.Query, r.Context)
			if err != nil {
				return asStageError("route", ErrRouting, err)
			}
			r.Capability = name
			return nil
		})
}

// dispatchStep loads history and executes the routed capability.
func (o *Orchestrator) dispatchStep() *step {
	return newStep("dispatch", "Execute the routed capability", StageDispatched,
		func(ctx context.Context, r *Request) *StageError {
			r.Historical = o.historical(ctx, r)

			raw, err := o.dispatcher.Dispatch(ctx, r.Capability, EnrichedQuery{
				Query:      r.Query,
				Context:    r.Context,
				Historical: r.Historical,
			})
			if err != nil {
				return asStageError("dispatch", ErrUpstreamModel, err)
			}
			r.Raw = raw
			return nil
		})
}

// enhanceStep assembles the structured response. It cannot fail.
func (o *Orchestrator) enhanceStep() *step {
	return newStep("enhance", "Derive enrichments and confidence", StageEnhanced,
		func(ctx context.Context, r *Request) *StageError {
			r.Response = o.enhancer.Enhance(ctx, r.Capability, r.Raw, r.Query, ConfidenceInputs{
				SourceCount:        len(r.Raw.Sources),
				ContextRelevance:   r.Context.RelevanceScore,
				HistoricalAccuracy: r.Raw.HistoricalAccuracy,
			})
			return nil
		})
}

// logStep hands the interaction to the sink without waiting for delivery.
func (o *Orchestrator) logStep() *step {
	return newStep("log", "Record the interaction", StageLogged,
		func(ctx context.Context, r *Request) *StageError {
			o.deliver(ctx, r.Query, r.Response)
			return nil
		})
}

// historical fetches the user's history, degrading to empty on failure.
func (o *Orchestrator) historical(ctx context.Context, r *Request) HistoricalContext {
	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.History)
	defer cancel()

	h, err := o.history.Historical(callCtx, r.Query.UserID)
	if err != nil {
		capitan.Emit(ctx, HistoryDegraded,
			FieldTraceID.Field(r.TraceID),
			FieldUserID.Field(r.Query.UserID),
			FieldError.Field(err),
		)
		return HistoricalContext{}.normalized()
	}
	return h.normalized()
}

// asStageError returns err as a *StageError, wrapping it under kind when it is not one.
func asStageError(op string, kind, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return newStageError(op, kind, err)
}

var _ pipz.Chainable[*Request] = (*step)(nil)
