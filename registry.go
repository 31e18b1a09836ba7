package counsel

import (
	"fmt"
	"strings"
)

// Registry is an immutable table of capabilities keyed by name.
// It is built once at startup and shared read-only by all requests.
type Registry struct {
	capabilities map[CapabilityName]Capability
}

// NewRegistry builds a Registry holding exactly the closed capability set.
// Unknown keys, nil capabilities and missing names are initialization errors.
func NewRegistry(capabilities map[CapabilityName]Capability) (*Registry, error) {
	table := make(map[CapabilityName]Capability, len(capabilityOrder))

	for name, capability := range capabilities {
		if !name.Valid() {
			return nil, fmt.Errorf("%w: unknown capability %q", ErrInitialization, name)
		}
		if capability == nil {
			return nil, fmt.Errorf("%w: capability %q is nil", ErrInitialization, name)
		}
		table[name] = capability
	}

	var missing []string
	for _, name := range capabilityOrder {
		if _, ok := table[name]; !ok {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing capabilities: %s", ErrInitialization, strings.Join(missing, ", "))
	}

	return &Registry{capabilities: table}, nil
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name CapabilityName) (Capability, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

// Names returns the registered names in presentation order.
func (r *Registry) Names() []CapabilityName {
	names := make([]CapabilityName, 0, len(r.capabilities))
	for _, name := range capabilityOrder {
		if _, ok := r.capabilities[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.capabilities)
}
