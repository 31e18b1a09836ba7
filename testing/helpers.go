// Package counseltest provides test utilities for counsel.
package counseltest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/counsel"
	"github.com/zoobzio/zyn"
)

// LLM is a counsel.Provider that answers each zyn synapse with a scripted
// reply, chosen by the prompt's task line. Routing gets Route as the primary
// category; extraction prompts get ActionItems or Recommendations; the
// briefing transform gets Briefing.
type LLM struct {
	Route           string
	ActionItems     []string
	Recommendations []string
	Briefing        string
	Err             error

	mu    sync.Mutex
	calls int
}

// NewLLM creates an LLM that routes everything to route.
func NewLLM(route counsel.CapabilityName) *LLM {
	return &LLM{
		Route:           string(route),
		ActionItems:     []string{"Review the numbers"},
		Recommendations: []string{"Set a weekly goal", "Measure progress"},
		Briefing:        "Focus on your top priority today.",
	}
}

// Call implements counsel.Provider.
func (l *LLM) Call(ctx context.Context, messages []zyn.Message, _ float32) (*zyn.ProviderResponse, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}

	var task string
	if len(messages) > 0 {
		task, _, _ = strings.Cut(messages[len(messages)-1].Content, "\n")
	}

	var reply any
	switch {
	case strings.Contains(task, counsel.RoutingQuestion):
		reply = map[string]any{
			"primary":    l.Route,
			"secondary":  "",
			"confidence": 0.9,
			"reasoning":  []string{"scripted"},
		}
	case strings.Contains(task, counsel.ActionItemsTarget):
		reply = map[string]any{"actionItems": nonNil(l.ActionItems)}
	case strings.Contains(task, counsel.RecommendationsTarget):
		reply = map[string]any{"recommendations": nonNil(l.Recommendations)}
	default:
		reply = map[string]any{
			"output":     l.Briefing,
			"confidence": 0.9,
			"changes":    []string{},
			"reasoning":  []string{"scripted"},
		}
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("counseltest: %w", err)
	}
	return &zyn.ProviderResponse{Content: string(data)}, nil
}

// Name implements counsel.Provider.
func (l *LLM) Name() string {
	return "counseltest"
}

// Calls returns the number of model calls made.
func (l *LLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

var _ counsel.Provider = (*LLM)(nil)

// StaticCapability returns a capability that always answers text, citing
// the sources of the retrieved context.
func StaticCapability(text string) counsel.Capability {
	return counsel.CapabilityFunc(func(_ context.Context, q counsel.EnrichedQuery) (*counsel.RawResponse, error) {
		return &counsel.RawResponse{
			Text:    text,
			Sources: q.Context.Sources(),
			Metrics: map[string]any{},
		}, nil
	})
}

// NewTestRegistry creates a registry where every capability answers with
// its own name.
func NewTestRegistry(t testing.TB) *counsel.Registry {
	t.Helper()
	caps := make(map[counsel.CapabilityName]counsel.Capability)
	for _, name := range counsel.Capabilities() {
		caps[name] = StaticCapability(fmt.Sprintf("%s advice", name))
	}
	reg, err := counsel.NewRegistry(caps)
	if err != nil {
		t.Fatalf("failed to create test registry: %v", err)
	}
	return reg
}

// NewTestOrchestrator creates an orchestrator wired to scripted collaborators
// that routes every query to route. It is closed when the test ends.
func NewTestOrchestrator(t testing.TB, route counsel.CapabilityName) *counsel.Orchestrator {
	t.Helper()
	o, err := counsel.New(NewLLM(route), counsel.StaticRetriever{}, NewTestRegistry(t))
	if err != nil {
		t.Fatalf("failed to create test orchestrator: %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

// MockMemory implements counsel.Memory for testing without a database.
type MockMemory struct {
	interactions map[string][]*counsel.Interaction
	profiles     map[string]*counsel.Profile
	mu           sync.RWMutex
}

// NewMockMemory creates a new in-memory mock for counsel.Memory.
func NewMockMemory() *MockMemory {
	return &MockMemory{
		interactions: make(map[string][]*counsel.Interaction),
		profiles:     make(map[string]*counsel.Profile),
	}
}

// Record persists the interaction with an ID populated.
func (m *MockMemory) Record(ctx context.Context, q counsel.Query, resp *counsel.StructuredResponse) error {
	in := counsel.NewInteraction(ctx, q, resp)
	in.ID = uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions[q.UserID] = append(m.interactions[q.UserID], in)
	return nil
}

// Interactions returns up to limit interactions for userID, newest first.
func (m *MockMemory) Interactions(_ context.Context, userID string, limit int) ([]*counsel.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Stored in insertion order.
	stored := m.interactions[userID]
	out := make([]*counsel.Interaction, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Historical derives the user's history from stored interactions.
func (m *MockMemory) Historical(ctx context.Context, userID string) (counsel.HistoricalContext, error) {
	interactions, err := m.Interactions(ctx, userID, counsel.DefaultHistoryWindow)
	if err != nil {
		return counsel.HistoricalContext{}, err
	}

	m.mu.RLock()
	profile := m.profiles[userID]
	m.mu.RUnlock()

	return counsel.DeriveHistory(interactions, profile), nil
}

// SaveProfile creates or replaces a profile.
func (m *MockMemory) SaveProfile(_ context.Context, profile *counsel.Profile) error {
	if profile == nil || profile.UserID == "" {
		return errors.New("profile requires a user id")
	}
	p := *profile
	p.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = &p
	return nil
}

// Count returns the number of interactions stored for userID.
func (m *MockMemory) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.interactions[userID])
}

// Verify MockMemory implements counsel.Memory.
var _ counsel.Memory = (*MockMemory)(nil)

// RequireCapability asserts that resp was answered by name.
func RequireCapability(t *testing.T, resp *counsel.StructuredResponse, name counsel.CapabilityName) {
	t.Helper()
	if resp == nil {
		t.Fatalf("expected a response from %s, got nil", name)
	}
	if resp.Capability != name {
		t.Fatalf("expected capability %q, got %q", name, resp.Capability)
	}
}

// RequireConfidence asserts that resp's confidence lies in [min, max].
func RequireConfidence(t *testing.T, resp *counsel.StructuredResponse, min, max float64) {
	t.Helper()
	if resp.Confidence < min || resp.Confidence > max {
		t.Fatalf("expected confidence in [%.2f, %.2f], got %.2f", min, max, resp.Confidence)
	}
}
