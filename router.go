package counsel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/zyn"
)

// RoutingQuestion is the classification task put to the model.
const RoutingQuestion = "Which specialist agent on an executive coaching platform should handle this query?"

// Router selects the capability that should answer a query.
// The classifier's primary category is validated against the closed
// capability set; an unrecognized category is a routing error, never a default.
type Router struct {
	synapse     *zyn.ClassificationSynapse
	temperature float32
	timeout     time.Duration
}

// NewRouter creates a Router that classifies through provider.
func NewRouter(provider Provider) (*Router, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	categories := make([]string, 0, len(capabilityOrder))
	for _, name := range capabilityOrder {
		categories = append(categories, string(name))
	}
	synapse, err := zyn.Classification(RoutingQuestion, categories, provider)
	if err != nil {
		return nil, fmt.Errorf("router: failed to create classification synapse: %w", err)
	}
	return &Router{
		synapse:     synapse,
		temperature: DefaultRoutingTemperature,
		timeout:     DefaultTimeouts().Route,
	}, nil
}

// WithTemperature sets the classification temperature.
func (r *Router) WithTemperature(temp float32) *Router {
	r.temperature = temp
	return r
}

// WithTimeout bounds the classification call.
func (r *Router) WithTimeout(d time.Duration) *Router {
	r.timeout = d
	return r
}

// Route classifies q in the light of bundle and returns the chosen capability.
func (r *Router) Route(ctx context.Context, q Query, bundle ContextBundle) (CapabilityName, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.synapse.FireWithInput(callCtx, zyn.NewSession(), zyn.ClassificationInput{
		Subject:     q.Text,
		Context:     RenderRoutingContext(q, bundle),
		Temperature: r.temperature,
	})
	if err != nil {
		return "", upstreamError("route", err)
	}

	name, err := ParseCapabilityName(resp.Primary)
	if err != nil {
		return "", newStageError("route", ErrRouting, err)
	}

	capitan.Emit(ctx, QueryRouted,
		FieldTraceID.Field(TraceIDFromContext(ctx)),
		FieldUserID.Field(q.UserID),
		FieldCapability.Field(string(name)),
		FieldConfidence.Field(float32(resp.Confidence)),
		FieldTemperature.Field(r.temperature),
	)

	return name, nil
}

// RenderRoutingContext describes the agents, the user's goals and the
// retrieved context for the classifier.
func RenderRoutingContext(q Query, bundle ContextBundle) string {
	var b strings.Builder
	b.WriteString("Available agents:\n")
	for _, name := range capabilityOrder {
		fmt.Fprintf(&b, "- %s: %s\n", name, name.Description())
	}
	fmt.Fprintf(&b, "User goals: %s\n", q.GoalsText("Not specified"))
	if bundle.Summary != "" {
		fmt.Fprintf(&b, "Retrieved context: %s\n", bundle.Summary)
	}
	for _, d := range bundle.Documents {
		fmt.Fprintf(&b, "- %s (%s)\n", d.Title, d.Source)
	}
	fmt.Fprintf(&b, "Context relevance: %.2f", bundle.RelevanceScore)
	return b.String()
}
