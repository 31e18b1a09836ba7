package counsel

import (
	"context"
	"testing"
)

func TestDeriveHistory(t *testing.T) {
	interactions := []*Interaction{
		{Agent: "revenue", Confidence: 0.95, Recommendations: StringList{"Raise prices", "Bundle plans"}},
		{Agent: "financial", Confidence: 0.5, Recommendations: StringList{"Cut costs"}},
		{Agent: "revenue", Confidence: 0.9, Recommendations: StringList{"Raise prices", "Referral program"}},
		{Agent: "", Confidence: 1},
	}
	profile := &Profile{
		UserID:         "u1",
		Preferences:    StringMap{"tone": "direct"},
		CompanyMetrics: StringMap{"mrr": "42000"},
	}

	h := DeriveHistory(interactions, profile)

	wantTopics := []string{"revenue", "financial"}
	if len(h.PreviousTopics) != len(wantTopics) {
		t.Fatalf("expected topics %v, got %v", wantTopics, h.PreviousTopics)
	}
	for i, topic := range wantTopics {
		if h.PreviousTopics[i] != topic {
			t.Errorf("topic %d: expected %s, got %s", i, topic, h.PreviousTopics[i])
		}
	}

	wantStrategies := []string{"Raise prices", "Bundle plans", "Referral program"}
	if len(h.SuccessfulStrategies) != len(wantStrategies) {
		t.Fatalf("expected strategies %v, got %v", wantStrategies, h.SuccessfulStrategies)
	}
	for i, s := range wantStrategies {
		if h.SuccessfulStrategies[i] != s {
			t.Errorf("strategy %d: expected %s, got %s", i, s, h.SuccessfulStrategies[i])
		}
	}

	if h.Preferences["tone"] != "direct" || h.CompanyMetrics["mrr"] != "42000" {
		t.Errorf("expected profile maps, got %+v", h)
	}
}

func TestDeriveHistoryEmpty(t *testing.T) {
	h := DeriveHistory(nil, nil)
	if !h.Empty() {
		t.Errorf("expected empty history, got %+v", h)
	}
	if h.PreviousTopics == nil || h.SuccessfulStrategies == nil || h.Preferences == nil || h.CompanyMetrics == nil {
		t.Error("expected non-nil collections")
	}
}

func TestNewInteraction(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	resp := &StructuredResponse{
		Capability:      Leadership,
		Confidence:      0.7,
		Sources:         []string{"handbook"},
		Recommendations: []string{"Hold weekly 1:1s"},
	}

	in := NewInteraction(ctx, Query{UserID: "u1", SessionID: "s1", Text: "team morale"}, resp)

	if in.TraceID != "trace-1" || in.UserID != "u1" || in.Agent != "leadership" || in.Query != "team morale" {
		t.Errorf("unexpected interaction %+v", in)
	}
	if len(in.Sources) != 1 || in.ActionItems == nil {
		t.Errorf("unexpected lists %+v", in)
	}
	if in.CreatedAt.IsZero() {
		t.Error("expected creation time")
	}

	resp.Recommendations[0] = "changed"
	if in.Recommendations[0] != "Hold weekly 1:1s" {
		t.Error("interaction should not alias the response")
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr bool
	}{
		{"bytes", []byte(`["a","b"]`), []string{"a", "b"}, false},
		{"string", `["c"]`, []string{"c"}, false},
		{"nil", nil, []string{}, false},
		{"json null", "null", []string{}, false},
		{"bad type", 42, nil, true},
		{"bad json", "[", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			err := l.Scan(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l == nil || len(l) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, l)
			}
			for i := range l {
				if l[i] != tt.want[i] {
					t.Errorf("element %d: expected %s, got %s", i, tt.want[i], l[i])
				}
			}
		})
	}

	if v, _ := StringList(nil).Value(); v != "[]" {
		t.Errorf("nil list should store as [], got %v", v)
	}
	if v, _ := (StringList{"x"}).Value(); v != `["x"]` {
		t.Errorf("unexpected value %v", v)
	}
}

func TestStringMap(t *testing.T) {
	var m StringMap
	if err := m.Scan([]byte(`{"tone":"direct"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["tone"] != "direct" {
		t.Errorf("unexpected map %v", m)
	}

	if err := m.Scan(nil); err != nil || m == nil || len(m) != 0 {
		t.Errorf("nil should scan to an empty map, got %v (%v)", m, err)
	}
	if err := m.Scan(3.14); err == nil {
		t.Error("expected error for unsupported type")
	}

	if v, _ := StringMap(nil).Value(); v != "{}" {
		t.Errorf("nil map should store as {}, got %v", v)
	}
}
