package counsel

import (
	"context"
	"errors"

	"github.com/zoobzio/zyn"
)

// Provider defines the interface for LLM providers.
// This matches zyn.Provider interface for compatibility.
type Provider interface {
	Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error)
	Name() string
}

// Context key for provider.
type providerKeyType struct{}

var providerKey = providerKeyType{}

// ErrNoProvider is returned when no provider can be resolved.
var ErrNoProvider = errors.New("no provider configured: set explicitly or via context")

// WithProvider adds a provider to the context.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey, p)
}

// ProviderFromContext retrieves the provider from context, if present.
func ProviderFromContext(ctx context.Context) (Provider, bool) {
	p, ok := ctx.Value(providerKey).(Provider)
	return p, ok && p != nil
}

// ResolveProvider returns the explicit provider when set, otherwise the
// provider carried by ctx. There is no process-wide fallback.
func ResolveProvider(ctx context.Context, explicit Provider) (Provider, error) {
	if explicit != nil {
		return explicit, nil
	}
	if p, ok := ProviderFromContext(ctx); ok {
		return p, nil
	}
	return nil, ErrNoProvider
}
