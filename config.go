package counsel

import (
	"time"

	"github.com/zoobzio/zyn"
)

// Default configuration for the orchestration pipeline.
// These can be overridden per-orchestrator using options.
var (
	// DefaultRoutingTemperature keeps classification near-deterministic.
	DefaultRoutingTemperature = float32(zyn.DefaultTemperatureDeterministic)

	// DefaultEnrichmentTemperature is used for action-item extraction and
	// recommendation generation.
	DefaultEnrichmentTemperature = float32(zyn.DefaultTemperatureDeterministic)

	// DefaultBriefingTemperature is used for the free-text daily briefing.
	DefaultBriefingTemperature = float32(zyn.DefaultTemperatureCreative)

	// DefaultCapabilityTemperature is used by prompt-driven specialists.
	DefaultCapabilityTemperature = float32(zyn.DefaultTemperatureCreative)
)

// FallbackGoal stands in for the user's goals when none were stated.
const FallbackGoal = "General business growth"

// MaxRecommendations caps the recommendations kept from a single reply.
const MaxRecommendations = 5

// Timeouts bounds every external call the pipeline makes.
type Timeouts struct {
	Retrieve time.Duration
	Route    time.Duration
	History  time.Duration
	Dispatch time.Duration
	Enrich   time.Duration
	Briefing time.Duration
	Sink     time.Duration
}

// DefaultTimeouts returns the bounds used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Retrieve: 10 * time.Second,
		Route:    15 * time.Second,
		History:  5 * time.Second,
		Dispatch: 60 * time.Second,
		Enrich:   30 * time.Second,
		Briefing: 60 * time.Second,
		Sink:     5 * time.Second,
	}
}

// withDefaults fills zero durations from DefaultTimeouts.
func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Retrieve <= 0 {
		t.Retrieve = d.Retrieve
	}
	if t.Route <= 0 {
		t.Route = d.Route
	}
	if t.History <= 0 {
		t.History = d.History
	}
	if t.Dispatch <= 0 {
		t.Dispatch = d.Dispatch
	}
	if t.Enrich <= 0 {
		t.Enrich = d.Enrich
	}
	if t.Briefing <= 0 {
		t.Briefing = d.Briefing
	}
	if t.Sink <= 0 {
		t.Sink = d.Sink
	}
	return t
}
