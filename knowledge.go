package counsel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// KnowledgeDocument is a stored piece of advisory knowledge.
// An empty UserID marks a document shared by all users.
type KnowledgeDocument struct {
	ID        string    `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	UserID    string    `db:"user_id" type:"text" default:"''"`
	Title     string    `db:"title" type:"text" constraints:"notnull"`
	Content   string    `db:"content" type:"text" constraints:"notnull"`
	Source    string    `db:"source" type:"text"`
	Embedding Vector    `db:"embedding" type:"vector(1536)"`
	CreatedAt time.Time `db:"created_at" type:"timestamp" constraints:"notnull"`
}

// Retrieval defaults.
const (
	DefaultRetrievalLimit = 5
	candidateFactor       = 4
)

// SoyRetriever retrieves context by nearest-neighbour search over the
// documents table.
type SoyRetriever struct {
	documents *soy.Soy[KnowledgeDocument]
	embedder  Embedder
	limit     int
}

// NewSoyRetriever creates a retriever over the documents table.
// A nil embedder is resolved from the call context.
func NewSoyRetriever(db *sqlx.DB, embedder Embedder) (*SoyRetriever, error) {
	documents, err := soy.New[KnowledgeDocument](db, "documents", postgres.New())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize documents table: %w", err)
	}
	return &SoyRetriever{
		documents: documents,
		embedder:  embedder,
		limit:     DefaultRetrievalLimit,
	}, nil
}

// WithLimit sets the maximum number of documents per bundle.
func (r *SoyRetriever) WithLimit(n int) *SoyRetriever {
	if n > 0 {
		r.limit = n
	}
	return r
}

// AddDocument stores doc, embedding its content when it has no embedding.
func (r *SoyRetriever) AddDocument(ctx context.Context, doc *KnowledgeDocument) (*KnowledgeDocument, error) {
	if len(doc.Embedding) == 0 {
		embedder, err := ResolveEmbedder(ctx, r.embedder)
		if err != nil {
			return nil, err
		}
		vec, err := embedder.Embed(ctx, doc.Title+"\n"+doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to embed document: %w", err)
		}
		doc.Embedding = vec
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	inserted, err := r.documents.Insert().Exec(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return inserted, nil
}

// Retrieve implements Retriever. Documents visible to the user are ranked
// by cosine similarity to the query; the bundle's relevance is the best score.
func (r *SoyRetriever) Retrieve(ctx context.Context, text string, hints Hints) (ContextBundle, error) {
	embedder, err := ResolveEmbedder(ctx, r.embedder)
	if err != nil {
		return ContextBundle{}, err
	}

	query := text
	if goals := (Query{Goals: hints.Goals}).GoalsText(""); goals != "" {
		query = text + "\nGoals: " + goals
	}
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return ContextBundle{}, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := r.documents.Query().
		WhereNotNull("embedding").
		OrderByExpr("embedding", "<->", "query_embedding", "asc").
		Limit(r.limit*candidateFactor).
		Exec(ctx, map[string]any{"query_embedding": vec})
	if err != nil {
		return ContextBundle{}, fmt.Errorf("failed to search documents: %w", err)
	}

	return BuildBundle(text, hints.UserID, vec, rows, r.limit), nil
}

// BuildBundle ranks candidate documents visible to userID against vec and
// keeps the best limit of them.
func BuildBundle(text, userID string, vec Vector, candidates []*KnowledgeDocument, limit int) ContextBundle {
	docs := make([]Document, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID != "" && c.UserID != userID {
			continue
		}
		docs = append(docs, Document{
			ID:      c.ID,
			Title:   c.Title,
			Content: c.Content,
			Source:  c.Source,
			Score:   vec.Cosine(c.Embedding),
		})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	bundle := ContextBundle{Documents: docs}
	if len(docs) > 0 {
		bundle.RelevanceScore = docs[0].Score
	}
	bundle.Summary = summarize(text, docs)
	return bundle
}

// summarize lists the documents retrieved for text.
func summarize(text string, docs []Document) string {
	if len(docs) == 0 {
		return "No stored knowledge matched: " + text
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Knowledge relevant to: %s", text)
	for _, d := range docs {
		fmt.Fprintf(&b, "\n- %s", d.Title)
	}
	return b.String()
}

var _ Retriever = (*SoyRetriever)(nil)
