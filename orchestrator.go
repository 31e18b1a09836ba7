package counsel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
	"github.com/zoobzio/zyn"
)

// Orchestrator answers advisory queries by routing them to a specialist
// capability and enriching the result.
//
// Configure an Orchestrator with its builder methods before serving
// requests; ProcessQuery is safe for concurrent use afterwards.
type Orchestrator struct {
	retriever  Retriever
	registry   *Registry
	history    HistoryProvider
	sink       Sink
	router     *Router
	dispatcher *Dispatcher
	enhancer   *Enhancer
	briefing   *zyn.TransformSynapse
	pipeline   *pipz.Sequence[*Request]

	timeouts            Timeouts
	briefingTemperature float32

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates an Orchestrator.
//
// provider serves routing, enrichment and briefings; retriever supplies
// context; registry holds the capabilities. History defaults to NoHistory
// and the sink to NoopSink.
//
// Example:
//
//	registry, _ := counsel.NewRegistry(counsel.DefaultCapabilities(provider))
//	o, err := counsel.New(provider, counsel.StaticRetriever{}, registry)
//	if err != nil {
//	    return err
//	}
//	defer o.Close()
//	resp, err := o.ProcessQuery(ctx, counsel.Query{UserID: "u1", Text: "How do I grow revenue?"})
func New(provider Provider, retriever Retriever, registry *Registry) (*Orchestrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is nil", ErrInitialization)
	}
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is nil", ErrInitialization)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is nil", ErrInitialization)
	}

	router, err := NewRouter(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	enhancer, err := NewEnhancer(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	briefing, err := zyn.Transform(BriefingInstruction, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: briefing: %w", ErrInitialization, err)
	}

	o := &Orchestrator{
		retriever:           retriever,
		registry:            registry,
		history:             NoHistory{},
		sink:                NoopSink{},
		router:              router,
		dispatcher:          NewDispatcher(registry),
		enhancer:            enhancer,
		briefing:            briefing,
		briefingTemperature: DefaultBriefingTemperature,
	}
	o.WithTimeouts(DefaultTimeouts())

	o.pipeline = pipz.NewSequence(
		pipz.NewIdentity("counsel", "Query orchestration pipeline"),
		receiveStep(),
		o.retrieveStep(),
		o.routeStep(),
		o.dispatchStep(),
		o.enhanceStep(),
		o.logStep(),
	)
	return o, nil
}

// Builder methods

// WithTimeouts sets the per-call bounds. Zero durations keep their defaults.
func (o *Orchestrator) WithTimeouts(t Timeouts) *Orchestrator {
	o.timeouts = t.withDefaults()
	o.router.WithTimeout(o.timeouts.Route)
	o.dispatcher.WithTimeout(o.timeouts.Dispatch)
	o.enhancer.WithTimeout(o.timeouts.Enrich)
	return o
}

// WithHistory sets the historical context provider.
func (o *Orchestrator) WithHistory(h HistoryProvider) *Orchestrator {
	if h == nil {
		h = NoHistory{}
	}
	o.history = h
	return o
}

// WithSink sets the interaction sink.
func (o *Orchestrator) WithSink(s Sink) *Orchestrator {
	if s == nil {
		s = NoopSink{}
	}
	o.sink = s
	return o
}

// WithRoutingTemperature sets the classification temperature.
func (o *Orchestrator) WithRoutingTemperature(temp float32) *Orchestrator {
	o.router.WithTemperature(temp)
	return o
}

// WithEnrichmentTemperature sets the temperature for action items and recommendations.
func (o *Orchestrator) WithEnrichmentTemperature(temp float32) *Orchestrator {
	o.enhancer.WithTemperature(temp)
	return o
}

// WithBriefingTemperature sets the daily briefing temperature.
func (o *Orchestrator) WithBriefingTemperature(temp float32) *Orchestrator {
	o.briefingTemperature = temp
	return o
}

// WithFallbackGoal sets the goal used for recommendations when a query has none.
func (o *Orchestrator) WithFallbackGoal(goal string) *Orchestrator {
	o.enhancer.WithFallbackGoal(goal)
	return o
}

// Registry returns the capability registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ProcessQuery runs q through the pipeline and returns the structured answer.
// Every failure matches ErrProcessingFailed; the underlying *StageError is
// reachable with errors.As.
func (o *Orchestrator) ProcessQuery(ctx context.Context, q Query) (*StructuredResponse, error) {
	r, err := o.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.Response, nil
}

// Run is ProcessQuery returning the request carrier, including its stage
// records, on success and failure alike.
func (o *Orchestrator) Run(ctx context.Context, q Query) (*Request, error) {
	r := NewRequest(q)
	ctx = WithTraceID(ctx, r.TraceID)
	start := time.Now()

	capitan.Emit(ctx, RequestReceived,
		FieldTraceID.Field(r.TraceID),
		FieldUserID.Field(q.UserID),
		FieldSessionID.Field(q.SessionID),
		FieldQuerySize.Field(len(q.Text)),
	)

	_, err := o.pipeline.Process(ctx, r)
	if err == nil {
		err = r.advance(StageCompleted)
	}
	if err != nil {
		se := r.Failure()
		if se == nil {
			se = asStageError("pipeline", ErrProcessingFailed, err)
			r.fail(se)
		}
		capitan.Error(ctx, RequestFailed,
			FieldTraceID.Field(r.TraceID),
			FieldUserID.Field(q.UserID),
			FieldOp.Field(se.Op),
			FieldStage.Field(se.Stage.String()),
			FieldStepDuration.Field(time.Since(start)),
			FieldError.Field(se),
		)
		return r, fmt.Errorf("%w: %w", ErrProcessingFailed, se)
	}

	capitan.Emit(ctx, RequestCompleted,
		FieldTraceID.Field(r.TraceID),
		FieldUserID.Field(q.UserID),
		FieldCapability.Field(string(r.Response.Capability)),
		FieldConfidence.Field(float32(r.Response.Confidence)),
		FieldStepDuration.Field(time.Since(start)),
	)
	return r, nil
}

// deliver records the interaction on a detached goroutine. The sink sees a
// copy of resp and runs under its own timeout, outliving ctx cancellation.
func (o *Orchestrator) deliver(ctx context.Context, q Query, resp *StructuredResponse) {
	traceID := TraceIDFromContext(ctx)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		capitan.Error(ctx, SinkFailed,
			FieldTraceID.Field(traceID),
			FieldError.Field(fmt.Errorf("%w: %w", ErrSink, errClosed)),
		)
		return
	}
	o.inflight.Add(1)
	o.mu.Unlock()

	snapshot := resp.Clone()
	sinkCtx := context.WithoutCancel(ctx)

	go func() {
		defer o.inflight.Done()

		callCtx, cancel := context.WithTimeout(sinkCtx, o.timeouts.Sink)
		defer cancel()

		start := time.Now()
		if err := recordSafely(callCtx, o.sink, q, snapshot); err != nil {
			capitan.Error(sinkCtx, SinkFailed,
				FieldTraceID.Field(traceID),
				FieldUserID.Field(q.UserID),
				FieldError.Field(err),
			)
			return
		}
		capitan.Emit(sinkCtx, InteractionLogged,
			FieldTraceID.Field(traceID),
			FieldUserID.Field(q.UserID),
			FieldSessionID.Field(q.SessionID),
			FieldCapability.Field(string(snapshot.Capability)),
			FieldConfidence.Field(float32(snapshot.Confidence)),
			FieldStepDuration.Field(time.Since(start)),
		)
	}()
}

var errClosed = errors.New("orchestrator closed")

// Close stops accepting sink deliveries and waits for in-flight ones.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.inflight.Wait()
	return nil
}
