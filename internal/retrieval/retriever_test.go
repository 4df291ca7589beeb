package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// mapEmbedder returns fixed vectors per text.
type mapEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func (e *mapEmbedder) Name() string { return "map" }
func (e *mapEmbedder) Close() error { return nil }

type brokenStore struct{ *vectorstore.MemoryStore }

func (brokenStore) Search(context.Context, []float32, int) ([]vectorstore.Match, error) {
	return nil, &vectorstore.StoreError{Backend: "fake", Op: "search", Message: "unavailable"}
}

func seededStore(t *testing.T) *vectorstore.MemoryStore {
	t.Helper()
	s := vectorstore.NewMemoryStore("test")
	require.NoError(t, s.Upsert(context.Background(), []vectorstore.Point{
		{ID: "1", Vector: []float32{1, 0, 0}, Content: "X is Y", Metadata: map[string]any{"source": "faq"}},
		{ID: "2", Vector: []float32{0.8, 0.2, 0}, Content: "X is related to Z"},
		{ID: "3", Vector: []float32{0, 1, 0}, Content: "unrelated"},
		{ID: "4", Vector: []float32{0.5, 0.5, 0}, Content: "half"},
	}))
	return s
}

func TestRetrieve_TopKInStoreOrder(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{"What is X?": {1, 0, 0}}}
	r := New(emb, seededStore(t), 0)

	docs, err := r.Retrieve(context.Background(), "What is X?", 0)
	require.NoError(t, err)
	require.Len(t, docs, DefaultK)
	assert.Equal(t, "X is Y", docs[0].Document.Content)
	assert.Equal(t, "faq", docs[0].Document.Metadata["source"])
	assert.Equal(t, "X is related to Z", docs[1].Document.Content)
	assert.GreaterOrEqual(t, docs[0].Score, docs[1].Score)
	assert.GreaterOrEqual(t, docs[1].Score, docs[2].Score)
}

func TestRetrieve_CallerOverridesK(t *testing.T) {
	r := New(&mapEmbedder{}, seededStore(t), 2)

	docs, err := r.Retrieve(context.Background(), "anything", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = r.Retrieve(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRetrieve_EmptyCollection(t *testing.T) {
	r := New(&mapEmbedder{}, vectorstore.NewMemoryStore("empty"), 3)

	docs, err := r.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRetrieve_BlankQuery(t *testing.T) {
	r := New(&mapEmbedder{}, seededStore(t), 3)

	_, err := r.Retrieve(context.Background(), "   ", 3)
	var qe *QueryError
	assert.True(t, errors.As(err, &qe))
}

func TestRetrieve_PropagatesFailures(t *testing.T) {
	providerErr := &embedding.ProviderError{Provider: embedding.ProviderOpenAI, Message: "rate limited", StatusCode: 429}
	_, err := New(&mapEmbedder{err: providerErr}, seededStore(t), 3).Retrieve(context.Background(), "q", 3)
	var pe *embedding.ProviderError
	assert.True(t, errors.As(err, &pe))

	_, err = New(&mapEmbedder{}, brokenStore{vectorstore.NewMemoryStore("x")}, 3).Retrieve(context.Background(), "q", 3)
	var se *vectorstore.StoreError
	assert.True(t, errors.As(err, &se))
}
