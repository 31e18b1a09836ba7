package counsel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/zyn"
	"golang.org/x/sync/errgroup"
)

// Extraction targets for the two enrichments.
const (
	ActionItemsTarget     = "the clear, actionable items in this coaching response"
	RecommendationsTarget = "3-5 specific recommendations for next steps that follow from this coaching response and the user's goals"
)

// ActionItems is the structured reply of the action-item extraction.
type ActionItems struct {
	Items []string `json:"actionItems"`
}

// Validate implements zyn.Validator.
func (a ActionItems) Validate() error {
	if a.Items == nil {
		return errors.New("actionItems required")
	}
	return nil
}

// Recommendations is the structured reply of the recommendation extraction.
type Recommendations struct {
	Items []string `json:"recommendations"`
}

// Validate implements zyn.Validator.
func (r Recommendations) Validate() error {
	if r.Items == nil {
		return errors.New("recommendations required")
	}
	return nil
}

// Enhancer turns a raw capability response into a StructuredResponse.
// Action items and recommendations are best-effort: a failing sub-step
// degrades to an empty list and never discards the underlying answer.
type Enhancer struct {
	actions         *zyn.ExtractionSynapse[ActionItems]
	recommendations *zyn.ExtractionSynapse[Recommendations]
	temperature     float32
	timeout         time.Duration
	fallbackGoal    string
}

// NewEnhancer creates an Enhancer that derives enrichments through provider.
func NewEnhancer(provider Provider) (*Enhancer, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	actions, err := zyn.Extract[ActionItems](ActionItemsTarget, provider)
	if err != nil {
		return nil, fmt.Errorf("enhancer: failed to create action item synapse: %w", err)
	}
	recommendations, err := zyn.Extract[Recommendations](RecommendationsTarget, provider)
	if err != nil {
		return nil, fmt.Errorf("enhancer: failed to create recommendation synapse: %w", err)
	}
	return &Enhancer{
		actions:         actions,
		recommendations: recommendations,
		temperature:     DefaultEnrichmentTemperature,
		timeout:         DefaultTimeouts().Enrich,
		fallbackGoal:    FallbackGoal,
	}, nil
}

// WithTemperature sets the temperature for both enrichment calls.
func (e *Enhancer) WithTemperature(temp float32) *Enhancer {
	e.temperature = temp
	return e
}

// WithTimeout bounds each enrichment call.
func (e *Enhancer) WithTimeout(d time.Duration) *Enhancer {
	e.timeout = d
	return e
}

// WithFallbackGoal sets the goal used when a query states none.
func (e *Enhancer) WithFallbackGoal(goal string) *Enhancer {
	e.fallbackGoal = goal
	return e
}

// Enhance derives action items, recommendations and confidence for raw and
// assembles the final response under the routed capability name.
// The two model-backed derivations run concurrently and cannot fail the call.
func (e *Enhancer) Enhance(ctx context.Context, name CapabilityName, raw *RawResponse, q Query, in ConfidenceInputs) *StructuredResponse {
	var actions, recommendations Result[[]string]

	var g errgroup.Group
	g.Go(func() error {
		actions = e.ExtractActionItems(ctx, raw.Text)
		return nil
	})
	g.Go(func() error {
		recommendations = e.GenerateRecommendations(ctx, raw.Text, q)
		return nil
	})
	_ = g.Wait()

	e.reportDegraded(ctx, "action_items", actions)
	e.reportDegraded(ctx, "recommendations", recommendations)

	resp := &StructuredResponse{
		Response:        raw.Text,
		Capability:      name,
		Confidence:      Confidence(in),
		Sources:         append([]string{}, raw.Sources...),
		Recommendations: recommendations.Value,
		ActionItems:     actions.Value,
		Metrics:         raw.Metrics,
	}

	capitan.Emit(ctx, ResponseEnhanced,
		FieldTraceID.Field(TraceIDFromContext(ctx)),
		FieldCapability.Field(string(name)),
		FieldConfidence.Field(float32(resp.Confidence)),
		FieldSourceCount.Field(len(resp.Sources)),
		FieldItemCount.Field(len(resp.ActionItems)),
	)

	return resp
}

// ExtractActionItems extracts the concrete action items in text.
func (e *Enhancer) ExtractActionItems(ctx context.Context, text string) Result[[]string] {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.actions.FireWithInput(callCtx, zyn.NewSession(), zyn.ExtractionInput{
		Text:        text,
		Temperature: e.temperature,
	})
	if err != nil {
		return Degraded([]string{}, upstreamError("enhance", err))
	}
	return Ok(cleanList(reply.Items, 0))
}

// GenerateRecommendations derives next-step recommendations aligned with the
// query's goals, or the fallback goal when none were given.
func (e *Enhancer) GenerateRecommendations(ctx context.Context, text string, q Query) Result[[]string] {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.recommendations.FireWithInput(callCtx, zyn.NewSession(), zyn.ExtractionInput{
		Text:        text,
		Context:     "User goals: " + q.GoalsText(e.fallbackGoal),
		Temperature: e.temperature,
	})
	if err != nil {
		return Degraded([]string{}, upstreamError("enhance", err))
	}
	return Ok(cleanList(reply.Items, MaxRecommendations))
}

// cleanList trims items, drops blanks and keeps at most limit of them;
// limit <= 0 keeps every item.
func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *Enhancer) reportDegraded(ctx context.Context, enrichment string, r Result[[]string]) {
	if !r.IsDegraded() {
		return
	}
	capitan.Emit(ctx, EnrichmentDegraded,
		FieldTraceID.Field(TraceIDFromContext(ctx)),
		FieldEnrichment.Field(enrichment),
		FieldError.Field(r.Err),
	)
}
