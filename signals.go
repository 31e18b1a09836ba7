package counsel

import "github.com/zoobzio/capitan"

// Signal definitions for orchestration events.
// Signals follow the pattern: counsel.<entity>.<event>.
var (
	// Request lifecycle signals.
	RequestReceived = capitan.NewSignal(
		"counsel.request.received",
		"Query accepted into the orchestration pipeline",
	)
	RequestCompleted = capitan.NewSignal(
		"counsel.request.completed",
		"Structured response returned to the caller",
	)
	RequestFailed = capitan.NewSignal(
		"counsel.request.failed",
		"Request terminated at a pipeline stage",
	)

	// Step execution signals.
	StepStarted = capitan.NewSignal(
		"counsel.step.started",
		"Pipeline stage began execution",
	)
	StepCompleted = capitan.NewSignal(
		"counsel.step.completed",
		"Pipeline stage finished successfully",
	)
	StepFailed = capitan.NewSignal(
		"counsel.step.failed",
		"Pipeline stage encountered an error",
	)

	// Decision signals.
	ContextRetrieved = capitan.NewSignal(
		"counsel.context.retrieved",
		"Context bundle attached to the query",
	)
	QueryRouted = capitan.NewSignal(
		"counsel.query.routed",
		"Classification selected a capability",
	)
	CapabilityDispatched = capitan.NewSignal(
		"counsel.capability.dispatched",
		"Capability produced a raw response",
	)
	CapabilityMissing = capitan.NewSignal(
		"counsel.capability.missing",
		"Routed capability absent from the registry",
	)
	ResponseEnhanced = capitan.NewSignal(
		"counsel.response.enhanced",
		"Raw response assembled into a structured response",
	)

	// Degradation signals.
	EnrichmentDegraded = capitan.NewSignal(
		"counsel.enrichment.degraded",
		"Best-effort enrichment fell back to an empty result",
	)
	HistoryDegraded = capitan.NewSignal(
		"counsel.history.degraded",
		"Historical context unavailable, continuing without it",
	)

	// Interaction sink signals.
	InteractionLogged = capitan.NewSignal(
		"counsel.interaction.logged",
		"Interaction delivered to the sink",
	)
	SinkFailed = capitan.NewSignal(
		"counsel.sink.failed",
		"Interaction delivery failed",
	)

	// Briefing signals.
	BriefingGenerated = capitan.NewSignal(
		"counsel.briefing.generated",
		"Daily briefing produced for a user",
	)
)

// Field keys for orchestration event data.
var (
	// Request metadata.
	FieldTraceID   = capitan.NewStringKey("trace_id")
	FieldUserID    = capitan.NewStringKey("user_id")
	FieldSessionID = capitan.NewStringKey("session_id")
	FieldQuerySize = capitan.NewIntKey("query_size") // character count

	// Stage metadata.
	FieldStage        = capitan.NewStringKey("stage")
	FieldOp           = capitan.NewStringKey("op")
	FieldStepDuration = capitan.NewDurationKey("step_duration")

	// Decision metadata.
	FieldCapability    = capitan.NewStringKey("capability")
	FieldConfidence    = capitan.NewFloat32Key("confidence")
	FieldRelevance     = capitan.NewFloat32Key("relevance")
	FieldSourceCount   = capitan.NewIntKey("source_count")
	FieldDocumentCount = capitan.NewIntKey("document_count")
	FieldItemCount     = capitan.NewIntKey("item_count")
	FieldEnrichment    = capitan.NewStringKey("enrichment") // action_items, recommendations
	FieldTemperature   = capitan.NewFloat32Key("temperature")
	FieldContentSize   = capitan.NewIntKey("content_size") // character count

	// Error information.
	FieldError = capitan.NewErrorKey("error")
)
