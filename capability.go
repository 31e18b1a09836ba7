package counsel

import (
	"context"
	"fmt"
	"strings"
)

// CapabilityName identifies a specialist capability.
// The set of names is closed; use ParseCapabilityName to turn free text into a name.
type CapabilityName string

// The closed set of capability names.
const (
	Revenue    CapabilityName = "revenue"
	Leadership CapabilityName = "leadership"
	Operations CapabilityName = "operations"
	Financial  CapabilityName = "financial"
)

// capabilityOrder fixes the order in which capabilities are presented to the router.
var capabilityOrder = []CapabilityName{Revenue, Leadership, Operations, Financial}

var capabilityDescriptions = map[CapabilityName]string{
	Revenue:    "Handles revenue growth, sales strategies, customer acquisition, pricing",
	Leadership: "Handles team management, culture, communication, hiring, performance",
	Operations: "Handles process optimization, efficiency, scaling, systems",
	Financial:  "Handles financial planning, budgeting, metrics, profitability",
}

// Capabilities returns every capability name in presentation order.
func Capabilities() []CapabilityName {
	names := make([]CapabilityName, len(capabilityOrder))
	copy(names, capabilityOrder)
	return names
}

// ParseCapabilityName validates s against the closed capability set.
// The input is trimmed and lower-cased; anything else is rejected rather than guessed.
func ParseCapabilityName(s string) (CapabilityName, error) {
	name := CapabilityName(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := capabilityDescriptions[name]; !ok {
		return "", fmt.Errorf("unrecognized capability %q", s)
	}
	return name, nil
}

// Valid reports whether n belongs to the closed capability set.
func (n CapabilityName) Valid() bool {
	_, ok := capabilityDescriptions[n]
	return ok
}

// Description returns the one-line routing description for n.
func (n CapabilityName) Description() string {
	return capabilityDescriptions[n]
}

func (n CapabilityName) String() string {
	return string(n)
}

// Capability is a specialist that answers an enriched query.
type Capability interface {
	Execute(ctx context.Context, q EnrichedQuery) (*RawResponse, error)
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, q EnrichedQuery) (*RawResponse, error)

// Execute calls f.
func (f CapabilityFunc) Execute(ctx context.Context, q EnrichedQuery) (*RawResponse, error) {
	return f(ctx, q)
}
