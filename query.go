package counsel

import (
	"math"
	"strings"
)

// Message is one turn of prior conversation supplied with a query.
type Message struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

// Query is an end-user request as handed over by the transport layer.
// It is treated as immutable once created.
type Query struct {
	UserID        string    `json:"userId"`
	SessionID     string    `json:"sessionId"`
	Text          string    `json:"query"`
	Goals         []string  `json:"goals,omitempty"`
	PriorMessages []Message `json:"previousMessages,omitempty"`
}

// GoalsText joins the stated goals, or returns fallback when there are none.
func (q Query) GoalsText(fallback string) string {
	goals := make([]string, 0, len(q.Goals))
	for _, g := range q.Goals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}
	if len(goals) == 0 {
		return fallback
	}
	return strings.Join(goals, ", ")
}

// Document is a single piece of retrieved knowledge.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// ContextBundle is the retrieved background attached to a query before routing.
// Only the fields the pipeline reads are carried; retrievers drop everything else.
type ContextBundle struct {
	Documents      []Document `json:"relevantDocuments"`
	Summary        string     `json:"context"`
	RelevanceScore float64    `json:"score"`
}

// Sources returns the distinct, non-empty document sources in retrieval order.
func (b ContextBundle) Sources() []string {
	seen := make(map[string]struct{}, len(b.Documents))
	sources := make([]string, 0, len(b.Documents))
	for _, d := range b.Documents {
		if d.Source == "" {
			continue
		}
		if _, ok := seen[d.Source]; ok {
			continue
		}
		seen[d.Source] = struct{}{}
		sources = append(sources, d.Source)
	}
	return sources
}

// normalized replaces a nil document list with an empty one and zeroes
// non-finite scores, so downstream steps never see NaN or infinities.
func (b ContextBundle) normalized() ContextBundle {
	b.RelevanceScore = finiteOrZero(b.RelevanceScore)
	docs := make([]Document, len(b.Documents))
	for i, d := range b.Documents {
		d.Score = finiteOrZero(d.Score)
		docs[i] = d
	}
	b.Documents = docs
	return b
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// HistoricalContext summarises a user's prior interactions.
// The zero value means "no history" and is always acceptable.
type HistoricalContext struct {
	PreviousTopics       []string          `json:"previousTopics"`
	SuccessfulStrategies []string          `json:"successfulStrategies"`
	Preferences          map[string]string `json:"preferences"`
	CompanyMetrics       map[string]string `json:"companyMetrics"`
}

// Empty reports whether h carries no information.
func (h HistoricalContext) Empty() bool {
	return len(h.PreviousTopics) == 0 &&
		len(h.SuccessfulStrategies) == 0 &&
		len(h.Preferences) == 0 &&
		len(h.CompanyMetrics) == 0
}

// normalized replaces nil slices and maps with empty ones.
func (h HistoricalContext) normalized() HistoricalContext {
	if h.PreviousTopics == nil {
		h.PreviousTopics = []string{}
	}
	if h.SuccessfulStrategies == nil {
		h.SuccessfulStrategies = []string{}
	}
	if h.Preferences == nil {
		h.Preferences = map[string]string{}
	}
	if h.CompanyMetrics == nil {
		h.CompanyMetrics = map[string]string{}
	}
	return h
}

// EnrichedQuery is what a capability receives: the query plus everything gathered for it.
type EnrichedQuery struct {
	Query      Query
	Context    ContextBundle
	Historical HistoricalContext
}

// RawResponse is the unprocessed output of a capability.
type RawResponse struct {
	Text       string
	Capability string
	Sources    []string
	Metrics    map[string]any

	// HistoricalAccuracy is set by capabilities that have verified their advice
	// against the user's past outcomes.
	HistoricalAccuracy bool
}

// StructuredResponse is the final output of the pipeline.
type StructuredResponse struct {
	Response        string         `json:"response"`
	Capability      CapabilityName `json:"agent"`
	Confidence      float64        `json:"confidence"`
	Sources         []string       `json:"sources"`
	Recommendations []string       `json:"recommendations"`
	ActionItems     []string       `json:"actionItems"`
	Metrics         map[string]any `json:"metrics,omitempty"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r *StructuredResponse) Clone() *StructuredResponse {
	clone := *r
	clone.Sources = append([]string{}, r.Sources...)
	clone.Recommendations = append([]string{}, r.Recommendations...)
	clone.ActionItems = append([]string{}, r.ActionItems...)
	if r.Metrics != nil {
		clone.Metrics = make(map[string]any, len(r.Metrics))
		for k, v := range r.Metrics {
			clone.Metrics[k] = v
		}
	}
	return &clone
}
