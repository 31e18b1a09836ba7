package counsel

import (
	"context"
	"errors"
	"testing"
)

func TestRequestAdvancesForward(t *testing.T) {
	r := NewRequest(Query{Text: "q"})
	if r.Stage() != StageReceived {
		t.Fatalf("expected received, got %s", r.Stage())
	}
	if r.TraceID == "" {
		t.Error("expected trace ID")
	}

	for _, next := range []Stage{StageContextRetrieved, StageRouted, StageDispatched, StageEnhanced, StageLogged, StageCompleted} {
		if err := r.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if r.Stage() != next {
			t.Fatalf("expected %s, got %s", next, r.Stage())
		}
	}
}

func TestRequestRejectsBackwardMoves(t *testing.T) {
	r := NewRequest(Query{Text: "q"})
	if err := r.advance(StageRouted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.advance(StageContextRetrieved); err == nil {
		t.Error("expected backward move to fail")
	}
	if err := r.advance(StageRouted); err == nil {
		t.Error("expected repeated stage to fail")
	}
	if err := r.advance(StageFailed); err == nil {
		t.Error("expected advance to Failed to be rejected")
	}
	if r.Stage() != StageRouted {
		t.Errorf("stage changed on rejected moves: %s", r.Stage())
	}
}

func TestRequestFailIsAbsorbing(t *testing.T) {
	r := NewRequest(Query{Text: "q"})
	_ = r.advance(StageContextRetrieved)

	r.fail(newStageError("route", ErrRouting, errors.New("bad")))
	if r.Stage() != StageFailed {
		t.Fatalf("expected failed, got %s", r.Stage())
	}
	if r.Failure().Stage != StageContextRetrieved {
		t.Errorf("expected failure stamped with context_retrieved, got %s", r.Failure().Stage)
	}
	if err := r.advance(StageCompleted); err == nil {
		t.Error("expected no transition out of failed")
	}

	r.fail(newStageError("dispatch", ErrUpstreamModel, errors.New("later")))
	if r.Failure().Op != "route" {
		t.Error("second failure should not replace the first")
	}
}

func TestStageString(t *testing.T) {
	if StageContextRetrieved.String() != "context_retrieved" {
		t.Errorf("unexpected %q", StageContextRetrieved.String())
	}
	if Stage(99).String() != "stage(99)" {
		t.Errorf("unexpected %q", Stage(99).String())
	}
}

func TestTraceIDContext(t *testing.T) {
	if TraceIDFromContext(context.Background()) != "" {
		t.Error("expected empty trace ID")
	}
	ctx := WithTraceID(context.Background(), "trace-1")
	if TraceIDFromContext(ctx) != "trace-1" {
		t.Error("expected trace-1")
	}
}

func TestStageErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	se := newStageError("dispatch", ErrUpstreamModel, cause)

	if !errors.Is(se, ErrUpstreamModel) {
		t.Error("expected kind to match")
	}
	if !errors.Is(se, cause) {
		t.Error("expected cause to match")
	}
	if errors.Is(se, ErrRouting) {
		t.Error("unexpected kind match")
	}
	if se.Error() != "dispatch: upstream call failed: boom" {
		t.Errorf("unexpected message %q", se.Error())
	}

	if !errors.Is(upstreamError("route", context.DeadlineExceeded), ErrUpstreamTimeout) {
		t.Error("expected deadline to classify as timeout")
	}
}
