package counsel

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Memory persists interactions and user profiles and derives historical
// context from them. It is both the pipeline's Sink and its HistoryProvider.
type Memory interface {
	Sink
	HistoryProvider

	// Interactions returns the user's most recent interactions, newest first.
	Interactions(ctx context.Context, userID string, limit int) ([]*Interaction, error)

	// SaveProfile creates or replaces a user's profile.
	SaveProfile(ctx context.Context, profile *Profile) error
}

// Interaction is a persisted record of one answered query.
type Interaction struct {
	ID              string     `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	TraceID         string     `db:"trace_id" type:"text"`
	UserID          string     `db:"user_id" type:"text" constraints:"notnull"`
	SessionID       string     `db:"session_id" type:"text"`
	Query           string     `db:"query" type:"text" constraints:"notnull"`
	Agent           string     `db:"agent" type:"text" constraints:"notnull"`
	Confidence      float64    `db:"confidence" type:"double precision" constraints:"notnull"`
	Sources         StringList `db:"sources" type:"jsonb" default:"'[]'"`
	Recommendations StringList `db:"recommendations" type:"jsonb" default:"'[]'"`
	ActionItems     StringList `db:"action_items" type:"jsonb" default:"'[]'"`
	CreatedAt       time.Time  `db:"created_at" type:"timestamp" constraints:"notnull"`
}

// NewInteraction builds the persisted form of an answered query.
func NewInteraction(ctx context.Context, q Query, resp *StructuredResponse) *Interaction {
	return &Interaction{
		TraceID:         TraceIDFromContext(ctx),
		UserID:          q.UserID,
		SessionID:       q.SessionID,
		Query:           q.Text,
		Agent:           string(resp.Capability),
		Confidence:      resp.Confidence,
		Sources:         StringList(append([]string{}, resp.Sources...)),
		Recommendations: StringList(append([]string{}, resp.Recommendations...)),
		ActionItems:     StringList(append([]string{}, resp.ActionItems...)),
		CreatedAt:       time.Now().UTC(),
	}
}

// Profile holds the stable facts known about a user.
type Profile struct {
	UserID         string    `db:"user_id" type:"text" constraints:"primarykey"`
	Preferences    StringMap `db:"preferences" type:"jsonb" default:"'{}'"`
	CompanyMetrics StringMap `db:"company_metrics" type:"jsonb" default:"'{}'"`
	UpdatedAt      time.Time `db:"updated_at" type:"timestamp" constraints:"notnull"`
}

// SuccessfulConfidence is the confidence at or above which an interaction's
// recommendations count as successful strategies.
const SuccessfulConfidence = 0.9

// DeriveHistory folds interactions (newest first) and an optional profile
// into a HistoricalContext. Topics and strategies are distinct, in order of
// first appearance.
func DeriveHistory(interactions []*Interaction, profile *Profile) HistoricalContext {
	h := HistoricalContext{}.normalized()

	topics := make(map[string]struct{})
	strategies := make(map[string]struct{})
	for _, in := range interactions {
		if in.Agent != "" {
			if _, ok := topics[in.Agent]; !ok {
				topics[in.Agent] = struct{}{}
				h.PreviousTopics = append(h.PreviousTopics, in.Agent)
			}
		}
		if in.Confidence < SuccessfulConfidence {
			continue
		}
		for _, rec := range in.Recommendations {
			if _, ok := strategies[rec]; ok {
				continue
			}
			strategies[rec] = struct{}{}
			h.SuccessfulStrategies = append(h.SuccessfulStrategies, rec)
		}
	}

	if profile != nil {
		for k, v := range profile.Preferences {
			h.Preferences[k] = v
		}
		for k, v := range profile.CompanyMetrics {
			h.CompanyMetrics[k] = v
		}
	}
	return h
}

// StringList is a []string stored as a JSON array.
type StringList []string

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("cannot scan into StringList: %w", err)
	}
	if data == nil {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode StringList: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// StringMap is a map[string]string stored as a JSON object.
type StringMap map[string]string

// Scan implements sql.Scanner.
func (m *StringMap) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("cannot scan into StringMap: %w", err)
	}
	out := map[string]string{}
	if data != nil {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to decode StringMap: %w", err)
		}
	}
	if out == nil {
		out = map[string]string{}
	}
	*m = out
	return nil
}

// Value implements driver.Valuer.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", src)
	}
}
