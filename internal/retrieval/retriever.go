// Package retrieval finds the indexed chunks nearest to a query.
package retrieval

import (
	"context"
	"strings"

	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/types"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// DefaultK is the number of chunks returned when the caller does not choose.
const DefaultK = 3

// QueryError is returned for a blank query.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "invalid query: " + e.Message
}

// Retriever embeds queries and searches a vector store.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	k        int
}

// New creates a Retriever. A defaultK of zero or less uses DefaultK.
func New(embedder embedding.Embedder, store vectorstore.Store, defaultK int) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Retriever{embedder: embedder, store: store, k: defaultK}
}

// Retrieve returns up to k documents in the store's ranking order. A k of zero
// or less uses the retriever's default. An empty collection is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]types.ScoredDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &QueryError{Message: "query is empty"}
	}
	if k <= 0 {
		k = r.k
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, &embedding.ProviderError{Message: "expected one query embedding"}
	}

	matches, err := r.store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}

	docs := make([]types.ScoredDocument, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, types.ScoredDocument{
			Document: types.SourceDocument{Content: m.Content, Metadata: m.Metadata},
			Score:    m.Score,
		})
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}
