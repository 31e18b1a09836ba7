package counsel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zoobzio/zyn"
)

// Task markers used by mockLLM to tell synapse prompts apart.
const (
	markRoute           = "Which specialist agent"
	markActionItems     = "actionable items"
	markRecommendations = "recommendations for next steps"
	markBriefing        = "executive briefing"
)

// classificationReply is a well-formed classification reply naming primary.
func classificationReply(primary string) string {
	return fmt.Sprintf(`{"primary": %q, "secondary": "", "confidence": 0.9, "reasoning": ["matched the query"]}`, primary)
}

// transformReply is a well-formed transform reply carrying output.
func transformReply(output string) string {
	return fmt.Sprintf(`{"output": %q, "confidence": 0.9, "changes": [], "reasoning": ["summarized the history"]}`, output)
}

// mockCall is one recorded provider call.
type mockCall struct {
	prompt      string
	temperature float32
}

// mockLLM answers each kind of synapse prompt with a scripted reply or error.
type mockLLM struct {
	routeReply      string
	actionItems     string
	recommendations string
	briefing        string

	routeErr    error
	enrichErr   error
	briefingErr error

	mu    sync.Mutex
	calls []mockCall
}

func newMockLLM(route string) *mockLLM {
	return &mockLLM{
		routeReply:      classificationReply(route),
		actionItems:     `{"actionItems": ["Survey churned customers", "Launch a loyalty program"]}`,
		recommendations: `{"recommendations": ["Track monthly retention", "Hire a success manager", "Run quarterly reviews"]}`,
		briefing:        transformReply("Today: focus on retention."),
	}
}

func (m *mockLLM) Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error) {
	var prompt string
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}

	m.mu.Lock()
	m.calls = append(m.calls, mockCall{prompt: prompt, temperature: temperature})
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reply string
	var err error
	switch task := taskLine(prompt); {
	case strings.Contains(task, markRoute):
		reply, err = m.routeReply, m.routeErr
	case strings.Contains(task, markActionItems):
		reply, err = m.actionItems, m.enrichErr
	case strings.Contains(task, markRecommendations):
		reply, err = m.recommendations, m.enrichErr
	case strings.Contains(task, markBriefing):
		reply, err = m.briefing, m.briefingErr
	}
	if err != nil {
		return nil, err
	}
	return &zyn.ProviderResponse{
		Content: reply,
		Usage:   zyn.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
	}, nil
}

func (*mockLLM) Name() string {
	return "mock"
}

// callsMatching returns the recorded calls whose task line contains marker.
func (m *mockLLM) callsMatching(marker string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockCall
	for _, c := range m.calls {
		if strings.Contains(taskLine(c.prompt), marker) {
			out = append(out, c)
		}
	}
	return out
}

// taskLine returns the first line of a rendered synapse prompt.
func taskLine(prompt string) string {
	line, _, _ := strings.Cut(prompt, "\n")
	return line
}

// slowLLM blocks until the call context ends.
type slowLLM struct{}

func (slowLLM) Call(ctx context.Context, _ []zyn.Message, _ float32) (*zyn.ProviderResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowLLM) Name() string {
	return "slow"
}

// mockCapability records how often it ran and returns a fixed response.
type mockCapability struct {
	name     CapabilityName
	sources  []string
	accurate bool
	err      error

	mu    sync.Mutex
	calls int
	last  EnrichedQuery
}

func (m *mockCapability) Execute(_ context.Context, q EnrichedQuery) (*RawResponse, error) {
	m.mu.Lock()
	m.calls++
	m.last = q
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return &RawResponse{
		Text:               "Advice from " + string(m.name),
		Capability:         string(m.name),
		Sources:            m.sources,
		HistoricalAccuracy: m.accurate,
	}, nil
}

func (m *mockCapability) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCapabilities builds one mockCapability per name.
func mockCapabilities() map[CapabilityName]*mockCapability {
	caps := make(map[CapabilityName]*mockCapability)
	for _, name := range Capabilities() {
		caps[name] = &mockCapability{name: name}
	}
	return caps
}

// mockRegistry builds a registry over caps.
func mockRegistry(caps map[CapabilityName]*mockCapability) *Registry {
	m := make(map[CapabilityName]Capability, len(caps))
	for name, c := range caps {
		m[name] = c
	}
	r, err := NewRegistry(m)
	if err != nil {
		panic(err)
	}
	return r
}

// mockRetriever returns a fixed bundle.
type mockRetriever struct {
	bundle ContextBundle
	err    error

	mu    sync.Mutex
	hints Hints
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, hints Hints) (ContextBundle, error) {
	m.mu.Lock()
	m.hints = hints
	m.mu.Unlock()
	return m.bundle, m.err
}

// bundleWithSources builds a bundle of n documents from distinct sources.
func bundleWithSources(n int, relevance float64) ContextBundle {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{
			ID:      string(rune('a' + i)),
			Title:   "Doc " + string(rune('A'+i)),
			Content: "content",
			Source:  "source-" + string(rune('a'+i)),
			Score:   relevance,
		}
	}
	return ContextBundle{Documents: docs, Summary: "summary", RelevanceScore: relevance}
}

// recordingSink captures delivered interactions.
type recordingSink struct {
	mu        sync.Mutex
	responses []*StructuredResponse
	queries   []Query
	done      chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 16)}
}

func (s *recordingSink) Record(_ context.Context, q Query, resp *StructuredResponse) error {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.responses = append(s.responses, resp)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}
