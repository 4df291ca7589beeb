// Package vectorstore persists embedded chunks and answers nearest-neighbor queries.
//
// All backends keep every chunk in one named collection and rank by cosine
// similarity, highest first.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "docmind-collection"

// Point is one chunk with its embedding.
type Point struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Match is a search hit.
type Match struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Store is a vector collection.
type Store interface {
	// EnsureCollection creates the collection for vectors of the given dimension if it does not exist.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert writes points, replacing any with the same ID.
	Upsert(ctx context.Context, points []Point) error
	// Search returns up to k matches ordered by descending similarity.
	// A missing or empty collection yields no matches.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Collection() string
	Close() error
}

// StoreError represents a vector store failure.
type StoreError struct {
	Backend string
	Op      string
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s store %s", e.Backend, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Backend names.
const (
	BackendQdrant   = "qdrant"
	BackendPGVector = "pgvector"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Collection  string
	URL         string // Qdrant base URL
	APIKey      string // Qdrant API key
	DatabaseURL string // PostgreSQL DSN for pgvector
	Path        string // bbolt file
	Timeout     time.Duration
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	switch cfg.Backend {
	case BackendQdrant, "":
		return NewQdrantStore(cfg), nil
	case BackendPGVector:
		return NewPGVectorStore(ctx, cfg)
	case BackendBolt:
		return NewBoltStore(cfg)
	case BackendMemory:
		return NewMemoryStore(cfg.Collection), nil
	default:
		return nil, &StoreError{Backend: cfg.Backend, Op: "open", Message: "unknown backend"}
	}
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// zero-length, zero-norm, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK sorts matches by descending score, keeping insertion order among ties, and truncates to k.
func topK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
