package counsel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) (Vector, error)

	// Dimensions returns the vector dimensions produced by this embedder.
	Dimensions() int
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc struct {
	Fn   func(ctx context.Context, text string) (Vector, error)
	Dims int
}

// Embed calls f.Fn.
func (f EmbedderFunc) Embed(ctx context.Context, text string) (Vector, error) {
	return f.Fn(ctx, text)
}

// Dimensions returns f.Dims.
func (f EmbedderFunc) Dimensions() int {
	return f.Dims
}

// ErrNoEmbedder is returned when no embedder is configured.
var ErrNoEmbedder = errors.New("no embedder configured: set explicitly or via context")

// embedderKey is the context key for embedder.
type embedderKey struct{}

// WithEmbedder returns a context with the given embedder.
func WithEmbedder(ctx context.Context, e Embedder) context.Context {
	return context.WithValue(ctx, embedderKey{}, e)
}

// EmbedderFromContext retrieves an embedder from context.
func EmbedderFromContext(ctx context.Context) (Embedder, bool) {
	e, ok := ctx.Value(embedderKey{}).(Embedder)
	return e, ok
}

// ResolveEmbedder returns explicit when set, otherwise the context embedder.
func ResolveEmbedder(ctx context.Context, explicit Embedder) (Embedder, error) {
	if explicit != nil {
		return explicit, nil
	}
	if e, ok := EmbedderFromContext(ctx); ok {
		return e, nil
	}
	return nil, ErrNoEmbedder
}

// OpenAI embedding models and their dimensions.
const (
	ModelTextEmbedding3Small  = "text-embedding-3-small"
	ModelTextEmbedding3Large  = "text-embedding-3-large"
	DimensionsTextEmbedding3S = 1536
	DimensionsTextEmbedding3L = 3072
)

// OpenAIEmbedder implements Embedder using the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	client     *http.Client
}

// OpenAIEmbedderOption configures an OpenAIEmbedder.
type OpenAIEmbedderOption func(*OpenAIEmbedder)

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string, dimensions int) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.model = model
		e.dimensions = dimensions
	}
}

// WithEmbedderBaseURL sets a custom base URL (for proxies or compatible APIs).
func WithEmbedderBaseURL(url string) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.baseURL = url
	}
}

// WithEmbedderHTTPClient sets a custom HTTP client.
func WithEmbedderHTTPClient(client *http.Client) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.client = client
	}
}

// NewOpenAIEmbedder creates an OpenAI embedder with the given API key.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIEmbedderOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      ModelTextEmbedding3Small,
		dimensions: DimensionsTextEmbedding3S,
		baseURL:    DefaultOpenAIBaseURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

// Embed generates an embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(embeddingRequest{Input: text, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("openai embeddings: %s", embResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai embeddings: unexpected status %d", resp.StatusCode)
	}
	if len(embResp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return Vector(embResp.Data[0].Embedding), nil
}

// Dimensions returns the vector dimensions for this embedder.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

var _ Embedder = (*OpenAIEmbedder)(nil)
