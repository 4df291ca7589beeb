package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func samplePoints() []Point {
	return []Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Content: "alpha", Metadata: map[string]any{"source": "a.txt"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Content: "beta"},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Content: "gamma"},
	}
}

// exerciseStore runs the behavior every local backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, s.EnsureCollection(ctx, 3))
	require.NoError(t, s.EnsureCollection(ctx, 3))
	require.NoError(t, s.Upsert(ctx, samplePoints()))

	matches, err = s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "alpha", matches[0].Content)
	assert.Equal(t, "a.txt", matches[0].Metadata["source"])
	assert.Equal(t, "c", matches[1].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	require.NoError(t, s.Upsert(ctx, []Point{{ID: "a", Vector: []float32{0, 0, 1}, Content: "alpha v2"}}))
	matches, err = s.Search(ctx, []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "alpha v2", matches[0].Content)

	require.Error(t, s.EnsureCollection(ctx, 0))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("")
	assert.Equal(t, DefaultCollection, s.Collection())
	exerciseStore(t, s)
	assert.Equal(t, 3, s.Len())
}

func TestMemoryStore_RejectsDimensionMismatch(t *testing.T) {
	s := NewMemoryStore("test")
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, 2))

	err := s.Upsert(ctx, []Point{{ID: "x", Vector: []float32{1, 2, 3}}})
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, BackendMemory, storeErr.Backend)

	assert.Error(t, s.EnsureCollection(ctx, 3))
}

func TestMemoryStore_DoesNotAliasCallerData(t *testing.T) {
	s := NewMemoryStore("test")
	ctx := context.Background()
	vec := []float32{1, 0}
	meta := map[string]any{"k": "v"}
	require.NoError(t, s.Upsert(ctx, []Point{{ID: "x", Vector: vec, Content: "c", Metadata: meta}}))

	vec[0] = 0
	meta["k"] = "changed"

	matches, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "v", matches[0].Metadata["k"])
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewBoltStore(Config{Path: path, Collection: "docs"})
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(Config{Path: path, Collection: "docs"})
	require.NoError(t, err)
	defer reopened.Close()

	matches, err := reopened.Search(context.Background(), []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "beta", matches[0].Content)
}

func TestBoltStore_RequiresPath(t *testing.T) {
	_, err := NewBoltStore(Config{})
	var storeErr *StoreError
	assert.True(t, errors.As(err, &storeErr))
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.Equal(t, DefaultCollection, s.Collection())

	s, err = Open(ctx, Config{Backend: BackendQdrant, URL: "http://localhost:6333", Collection: "c"})
	require.NoError(t, err)
	assert.IsType(t, &QdrantStore{}, s)

	s, err = Open(ctx, Config{Backend: BackendBolt, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "cassandra"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendPGVector})
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "chunks_docmind_collection", tableName("docmind-collection"))
	assert.Equal(t, "chunks_my_docs_v2", tableName("My Docs.v2"))
}
