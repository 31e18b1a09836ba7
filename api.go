// Package counsel routes natural-language advisory queries to specialist
// capabilities and returns structured, scored answers.
//
// A query passes through a linear pipeline: context retrieval, capability
// routing, dispatch, response enhancement and interaction logging.
//
// # Core Types
//
//   - [Orchestrator] - Runs the pipeline; built once and shared by all requests
//   - [Query] - The user's request, goals and prior conversation
//   - [StructuredResponse] - The answer with action items, recommendations and confidence
//   - [Registry] - The fixed mapping from [CapabilityName] to [Capability]
//   - [Request] - Per-request carrier tracking the pipeline [Stage]
//
// # Collaborators
//
// The orchestrator consumes its dependencies through interfaces:
//
//   - [Provider] - Model access; routing, enrichment and briefings run as zyn synapses over it
//   - [Retriever] - Supplies the [ContextBundle] for a query
//   - [Capability] - A specialist that answers an [EnrichedQuery]
//   - [HistoryProvider] - Supplies a user's [HistoricalContext]
//   - [Sink] - Receives every completed interaction, fire-and-forget
//
// # Adapters
//
//   - [OpenAIProvider] - Chat completions over zyn messages
//   - [PromptCapability] and [DefaultCapabilities] - Persona-driven specialists
//   - [SoyRetriever] - Vector search over stored knowledge with an [Embedder]
//   - [SoyMemory] - Interaction log and history over PostgreSQL
//   - [NATSSink] - Publishes interactions as events
//   - [MultiSink] - Fans an interaction out to several sinks
//
// # Usage
//
//	provider := counsel.NewOpenAIProvider(apiKey)
//	registry, err := counsel.NewRegistry(counsel.DefaultCapabilities(provider))
//	if err != nil {
//	    return err
//	}
//	o, err := counsel.New(provider, counsel.StaticRetriever{}, registry)
//	if err != nil {
//	    return err
//	}
//	defer o.Close()
//
//	resp, err := o.ProcessQuery(ctx, counsel.Query{
//	    UserID: "u1",
//	    Text:   "How do I increase customer retention?",
//	})
//
// # Errors
//
// ProcessQuery failures match [ErrProcessingFailed]. The [StageError] behind
// them names the failing step and matches one of the kind sentinels
// ([ErrInvalidQuery], [ErrRouting], [ErrCapabilityNotFound],
// [ErrUpstreamModel], [ErrUpstreamTimeout]).
//
// # Observability
//
// Every step emits capitan signals (see signals.go). Hook them to log or
// collect metrics:
//
//	capitan.Hook(counsel.QueryRouted, func(ctx context.Context, e *capitan.Event) {
//	    name, _ := counsel.FieldCapability.From(e)
//	    log.Printf("routed to %s", name)
//	})
package counsel
