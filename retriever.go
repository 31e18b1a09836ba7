package counsel

import "context"

// Hints narrow retrieval to a user and their stated goals.
type Hints struct {
	UserID string
	Goals  []string
}

// Retriever supplies the context bundle for a query.
type Retriever interface {
	Retrieve(ctx context.Context, text string, hints Hints) (ContextBundle, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, text string, hints Hints) (ContextBundle, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context, text string, hints Hints) (ContextBundle, error) {
	return f(ctx, text, hints)
}

// StaticRetriever returns a placeholder bundle for every query.
// It stands in when no retrieval store is configured.
type StaticRetriever struct {
	Score float64
}

// DefaultStaticScore is the relevance reported by a zero StaticRetriever.
const DefaultStaticScore = 0.8

// Retrieve returns an empty bundle whose summary names the query.
func (r StaticRetriever) Retrieve(_ context.Context, text string, _ Hints) (ContextBundle, error) {
	score := r.Score
	if score == 0 {
		score = DefaultStaticScore
	}
	return ContextBundle{
		Documents:      []Document{},
		Summary:        "Placeholder context for: " + text,
		RelevanceScore: score,
	}, nil
}

var _ Retriever = StaticRetriever{}
