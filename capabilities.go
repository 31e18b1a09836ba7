package counsel

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zoobzio/zyn"
)

var personas = map[CapabilityName]string{
	Revenue: `You are a revenue strategist advising business owners and executives.
Focus on sales growth, pricing, customer acquisition and retention, and marketing
channels. Give specific, practical advice grounded in the context provided.`,
	Leadership: `You are an executive leadership coach.
Focus on team building, management, communication, decision-making and personal
development. Give specific, practical advice grounded in the context provided.`,
	Operations: `You are an operations advisor for growing businesses.
Focus on processes, efficiency, systems, scaling, delegation and productivity.
Give specific, practical advice grounded in the context provided.`,
	Financial: `You are a financial advisor for business owners.
Focus on cash flow, profitability, budgeting, investments and financial planning.
Give specific, practical advice grounded in the context provided.`,
}

// PromptCapability answers queries as a specialist persona through a Provider.
type PromptCapability struct {
	name        CapabilityName
	persona     string
	provider    Provider
	temperature float32
}

// NewPromptCapability creates a specialist for name speaking as persona.
// A nil provider is resolved from the call context.
func NewPromptCapability(name CapabilityName, persona string, provider Provider) *PromptCapability {
	return &PromptCapability{
		name:        name,
		persona:     persona,
		provider:    provider,
		temperature: DefaultCapabilityTemperature,
	}
}

// DefaultCapabilities builds the four specialists on provider.
func DefaultCapabilities(provider Provider) map[CapabilityName]Capability {
	caps := make(map[CapabilityName]Capability, len(capabilityOrder))
	for _, name := range capabilityOrder {
		caps[name] = NewPromptCapability(name, personas[name], provider)
	}
	return caps
}

// WithTemperature sets the answer temperature.
func (c *PromptCapability) WithTemperature(temp float32) *PromptCapability {
	c.temperature = temp
	return c
}

// Name returns the capability this specialist serves.
func (c *PromptCapability) Name() CapabilityName {
	return c.name
}

// Execute implements Capability.
func (c *PromptCapability) Execute(ctx context.Context, q EnrichedQuery) (*RawResponse, error) {
	provider, err := ResolveProvider(ctx, c.provider)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	session := c.conversation(q)
	resp, err := provider.Call(ctx, session.Messages(), c.temperature)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: empty response from %s", c.name, provider.Name())
	}

	return &RawResponse{
		Text:       resp.Content,
		Capability: string(c.name),
		Sources:    q.Context.Sources(),
		Metrics: map[string]any{
			"provider":         provider.Name(),
			"promptTokens":     resp.Usage.Prompt,
			"completionTokens": resp.Usage.Completion,
			"totalTokens":      resp.Usage.Total,
		},
		HistoricalAccuracy: len(q.Historical.SuccessfulStrategies) > 0,
	}, nil
}

// conversation renders q into a session: persona, gathered context, prior
// turns and finally the query itself.
func (c *PromptCapability) conversation(q EnrichedQuery) *zyn.Session {
	session := zyn.NewSession()
	session.Append("system", c.persona)
	session.Append("system", RenderContext(q))
	for _, m := range q.Query.PriorMessages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		session.Append(messageRole(m.Role), m.Text)
	}
	session.Append("user", q.Query.Text)
	return session
}

// messageRole maps a prior message role onto user or assistant.
func messageRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), "assistant") {
		return "assistant"
	}
	return "user"
}

// RenderContext formats the retrieved context and history for a specialist.
func RenderContext(q EnrichedQuery) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	if q.Context.Summary != "" {
		b.WriteString(q.Context.Summary)
		b.WriteString("\n")
	}
	for _, d := range q.Context.Documents {
		fmt.Fprintf(&b, "- %s", d.Title)
		if d.Source != "" {
			fmt.Fprintf(&b, " (%s)", d.Source)
		}
		fmt.Fprintf(&b, ": %s\n", d.Content)
	}

	if goals := q.Query.GoalsText(""); goals != "" {
		fmt.Fprintf(&b, "\nGoals: %s\n", goals)
	}

	h := q.Historical
	if h.Empty() {
		return b.String()
	}
	b.WriteString("\nHistory:\n")
	if len(h.PreviousTopics) > 0 {
		fmt.Fprintf(&b, "Previous topics: %s\n", strings.Join(h.PreviousTopics, ", "))
	}
	for _, s := range h.SuccessfulStrategies {
		fmt.Fprintf(&b, "Worked before: %s\n", s)
	}
	writeMap(&b, "Preference", h.Preferences)
	writeMap(&b, "Metric", h.CompanyMetrics)
	return b.String()
}

// writeMap writes m in key order.
func writeMap(b *strings.Builder, label string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s %s: %s\n", label, k, m[k])
	}
}

var _ Capability = (*PromptCapability)(nil)
