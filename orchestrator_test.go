package counsel

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	capitantesting "github.com/zoobzio/capitan/testing"
)

func newTestOrchestrator(t *testing.T, llm Provider, retriever Retriever, caps map[CapabilityName]*mockCapability) *Orchestrator {
	t.Helper()
	o, err := New(llm, retriever, mockRegistry(caps))
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	registry := mockRegistry(mockCapabilities())
	llm := newMockLLM("revenue")

	if _, err := New(nil, StaticRetriever{}, registry); !errors.Is(err, ErrInitialization) {
		t.Errorf("nil provider: expected ErrInitialization, got %v", err)
	}
	if _, err := New(llm, nil, registry); !errors.Is(err, ErrInitialization) {
		t.Errorf("nil retriever: expected ErrInitialization, got %v", err)
	}
	if _, err := New(llm, StaticRetriever{}, nil); !errors.Is(err, ErrInitialization) {
		t.Errorf("nil registry: expected ErrInitialization, got %v", err)
	}
}

func TestProcessQueryRetentionScenario(t *testing.T) {
	caps := mockCapabilities()
	caps[Operations].sources = []string{"s1", "s2", "s3", "s4"}
	retriever := &mockRetriever{bundle: bundleWithSources(4, 0.9)}

	o := newTestOrchestrator(t, newMockLLM("operations"), retriever, caps)

	resp, err := o.ProcessQuery(context.Background(), Query{
		UserID: "u1",
		Text:   "How do I increase customer retention?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Capability != Operations {
		t.Errorf("expected capability 'operations', got %q", resp.Capability)
	}
	if resp.Confidence != 0.90 {
		t.Errorf("expected confidence 0.90, got %v", resp.Confidence)
	}
	if retriever.hints.UserID != "u1" {
		t.Errorf("expected retrieval hints for u1, got %q", retriever.hints.UserID)
	}
}

func TestProcessQueryWithoutGoalsUsesFallbackGoal(t *testing.T) {
	llm := newMockLLM("revenue")
	o := newTestOrchestrator(t, llm, StaticRetriever{}, mockCapabilities())

	resp, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "How do I grow sales?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Recommendations) == 0 {
		t.Error("expected recommendations")
	}

	calls := llm.callsMatching(markRecommendations)
	if len(calls) != 1 {
		t.Fatalf("expected 1 recommendation call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].prompt, "General business growth") {
		t.Error("expected the fallback goal in the recommendation prompt")
	}
}

func TestProcessQueryNonFiniteRelevance(t *testing.T) {
	bundle := bundleWithSources(2, math.NaN())
	bundle.RelevanceScore = math.Inf(1)
	llm := newMockLLM("financial")
	o := newTestOrchestrator(t, llm, &mockRetriever{bundle: bundle}, mockCapabilities())

	r, err := o.Run(context.Background(), Query{UserID: "u1", Text: "Cash flow?"})
	if err != nil {
		t.Fatalf("non-finite scores should not fail the request: %v", err)
	}
	if len(llm.callsMatching(markRoute)) != 1 {
		t.Error("expected the classifier to be called")
	}
	if r.Context.RelevanceScore != 0 {
		t.Errorf("expected relevance zeroed, got %v", r.Context.RelevanceScore)
	}
	for _, d := range r.Context.Documents {
		if d.Score != 0 {
			t.Errorf("expected document score zeroed, got %v", d.Score)
		}
	}
	if r.Response.Confidence != 0.70 {
		t.Errorf("expected base confidence, got %v", r.Response.Confidence)
	}
}

func TestProcessQueryExecutesRoutedCapabilityOnce(t *testing.T) {
	caps := mockCapabilities()
	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, caps)

	resp, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "How do I grow sales?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Capability != Revenue {
		t.Errorf("expected revenue, got %q", resp.Capability)
	}

	for name, c := range caps {
		want := 0
		if name == Revenue {
			want = 1
		}
		if got := c.callCount(); got != want {
			t.Errorf("%s: expected %d executions, got %d", name, want, got)
		}
	}
}

func TestProcessQueryRoutingError(t *testing.T) {
	caps := mockCapabilities()
	o := newTestOrchestrator(t, newMockLLM("marketing"), StaticRetriever{}, caps)

	resp, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "help"})
	if resp != nil {
		t.Error("expected no response")
	}
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("expected ErrProcessingFailed, got %v", err)
	}
	if !errors.Is(err, ErrRouting) {
		t.Errorf("expected ErrRouting, got %v", err)
	}

	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("expected *StageError")
	}
	if se.Op != "route" || se.Stage != StageContextRetrieved {
		t.Errorf("unexpected failure point: op=%s stage=%s", se.Op, se.Stage)
	}

	for name, c := range caps {
		if c.callCount() != 0 {
			t.Errorf("%s should not have run", name)
		}
	}
}

func TestProcessQueryEmptyText(t *testing.T) {
	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, mockCapabilities())

	_, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "   "})
	if !errors.Is(err, ErrProcessingFailed) || !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected invalid query failure, got %v", err)
	}
}

func TestProcessQueryRetrievalFailure(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("index offline")}
	o := newTestOrchestrator(t, newMockLLM("revenue"), retriever, mockCapabilities())

	_, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "help"})
	if !errors.Is(err, ErrProcessingFailed) || !errors.Is(err, ErrUpstreamModel) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	var se *StageError
	if errors.As(err, &se) && se.Op != "retrieve" {
		t.Errorf("expected op 'retrieve', got %q", se.Op)
	}
}

func TestProcessQueryCapabilityFailure(t *testing.T) {
	caps := mockCapabilities()
	caps[Leadership].err = errors.New("model overloaded")
	o := newTestOrchestrator(t, newMockLLM("leadership"), StaticRetriever{}, caps)

	_, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "How do I hire?"})
	if !errors.Is(err, ErrProcessingFailed) || !errors.Is(err, ErrUpstreamModel) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestRunRecordsStages(t *testing.T) {
	o := newTestOrchestrator(t, newMockLLM("financial"), StaticRetriever{}, mockCapabilities())

	r, err := o.Run(context.Background(), Query{UserID: "u1", Text: "Budget?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Stage() != StageCompleted {
		t.Errorf("expected completed, got %s", r.Stage())
	}

	records := r.Records()
	ops := []string{"receive", "retrieve", "route", "dispatch", "enhance", "log"}
	if len(records) != len(ops) {
		t.Fatalf("expected %d records, got %d", len(ops), len(records))
	}
	for i, op := range ops {
		if records[i].Op != op {
			t.Errorf("record %d: expected %q, got %q", i, op, records[i].Op)
		}
		if records[i].Error != nil {
			t.Errorf("record %d: unexpected error %v", i, records[i].Error)
		}
	}
	if records[len(records)-1].Stage != StageLogged {
		t.Errorf("expected last record at logged, got %s", records[len(records)-1].Stage)
	}
}

func TestHistoryFailureDegrades(t *testing.T) {
	caps := mockCapabilities()
	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, caps)
	o.WithHistory(HistoryFunc(func(context.Context, string) (HistoricalContext, error) {
		return HistoricalContext{}, errors.New("history store down")
	}))

	capture := capitantesting.NewEventCapture()
	listener := capitan.Hook(HistoryDegraded, capture.Handler())
	defer listener.Close()

	if _, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "help"}); err != nil {
		t.Fatalf("history failure should not fail the request: %v", err)
	}
	if !capture.WaitForCount(1, time.Second) {
		t.Error("expected HistoryDegraded event")
	}
	if !caps[Revenue].last.Historical.Empty() {
		t.Error("expected empty history after degradation")
	}
}

func TestHistoryReachesCapability(t *testing.T) {
	caps := mockCapabilities()
	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, caps)
	o.WithHistory(HistoryFunc(func(_ context.Context, userID string) (HistoricalContext, error) {
		return HistoricalContext{PreviousTopics: []string{"pricing:" + userID}}, nil
	}))

	if _, err := o.ProcessQuery(context.Background(), Query{UserID: "u7", Text: "help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topics := caps[Revenue].last.Historical.PreviousTopics
	if len(topics) != 1 || topics[0] != "pricing:u7" {
		t.Errorf("unexpected history %v", topics)
	}
}

func TestSinkReceivesInteraction(t *testing.T) {
	sink := newRecordingSink()
	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, mockCapabilities())
	o.WithSink(sink)

	resp, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", SessionID: "s1", Text: "help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if sink.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sink.count())
	}
	delivered := sink.responses[0]
	if delivered == resp {
		t.Error("sink should receive a copy of the response")
	}
	if delivered.Capability != Revenue || sink.queries[0].SessionID != "s1" {
		t.Errorf("unexpected delivery %+v", delivered)
	}
}

func TestSinkFailureDoesNotSurface(t *testing.T) {
	sinks := map[string]Sink{
		"error": SinkFunc(func(context.Context, Query, *StructuredResponse) error {
			return errors.New("disk full")
		}),
		"panic": SinkFunc(func(context.Context, Query, *StructuredResponse) error {
			panic("sink exploded")
		}),
	}

	for name, sink := range sinks {
		t.Run(name, func(t *testing.T) {
			capture := capitantesting.NewEventCapture()
			listener := capitan.Hook(SinkFailed, capture.Handler())
			defer listener.Close()

			baseline := newTestOrchestrator(t, newMockLLM("operations"), StaticRetriever{}, mockCapabilities())
			want, err := baseline.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "help"})
			if err != nil {
				t.Fatalf("baseline failed: %v", err)
			}

			o := newTestOrchestrator(t, newMockLLM("operations"), StaticRetriever{}, mockCapabilities())
			o.WithSink(sink)
			got, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "help"})
			if err != nil {
				t.Fatalf("sink failure surfaced: %v", err)
			}
			if got.Capability != want.Capability || got.Confidence != want.Confidence || got.Response != want.Response {
				t.Errorf("sink failure changed result: %+v vs %+v", got, want)
			}

			if err := o.Close(); err != nil {
				t.Fatalf("close failed: %v", err)
			}
			if !capture.WaitForCount(1, time.Second) {
				t.Fatal("expected SinkFailed event")
			}
		})
	}
}

func TestSinkOutlivesRequestContext(t *testing.T) {
	var delivered atomic.Int32
	release := make(chan struct{})
	sink := SinkFunc(func(ctx context.Context, _ Query, _ *StructuredResponse) error {
		<-release
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delivered.Add(1)
		return nil
	})

	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, mockCapabilities())
	o.WithSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := o.ProcessQuery(ctx, Query{UserID: "u1", Text: "help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	close(release)

	if err := o.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if delivered.Load() != 1 {
		t.Error("expected delivery after request context was cancelled")
	}
}

func TestProcessQueryAfterCloseSkipsSink(t *testing.T) {
	sink := newRecordingSink()
	o := newTestOrchestrator(t, newMockLLM("revenue"), StaticRetriever{}, mockCapabilities())
	o.WithSink(sink)
	_ = o.Close()

	if _, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.count() != 0 {
		t.Error("expected no delivery after close")
	}
}

func TestProcessQueryConcurrent(t *testing.T) {
	sink := newRecordingSink()
	o := newTestOrchestrator(t, newMockLLM("financial"), StaticRetriever{}, mockCapabilities())
	o.WithSink(sink)

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := o.ProcessQuery(context.Background(), Query{UserID: "u1", Text: "Budget?"})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("request failed: %v", err)
		}
	}

	_ = o.Close()
	if sink.count() != n {
		t.Errorf("expected %d deliveries, got %d", n, sink.count())
	}
}
