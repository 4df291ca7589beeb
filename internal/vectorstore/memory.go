package vectorstore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store. It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	collection string
	dim        int
	points     []Point
	index      map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(collection string) *MemoryStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MemoryStore{collection: collection, index: make(map[string]int)}
}

// Collection implements Store.
func (s *MemoryStore) Collection() string { return s.collection }

// EnsureCollection implements Store.
func (s *MemoryStore) EnsureCollection(_ context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dim <= 0 {
		return &StoreError{Backend: BackendMemory, Op: "ensure collection", Message: "invalid dimension"}
	}
	if s.dim != 0 && s.dim != dim {
		return &StoreError{Backend: BackendMemory, Op: "ensure collection", Message: "dimension mismatch"}
	}
	s.dim = dim
	return nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Backend: BackendMemory, Op: "upsert", Cause: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if s.dim != 0 && len(p.Vector) != s.dim {
			return &StoreError{Backend: BackendMemory, Op: "upsert", Message: "dimension mismatch for point " + p.ID}
		}
		stored := Point{
			ID:       p.ID,
			Vector:   append([]float32(nil), p.Vector...),
			Content:  p.Content,
			Metadata: copyMetadata(p.Metadata),
		}
		if i, ok := s.index[p.ID]; ok {
			s.points[i] = stored
			continue
		}
		s.index[p.ID] = len(s.points)
		s.points = append(s.points, stored)
	}
	return nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Backend: BackendMemory, Op: "search", Cause: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.points))
	for _, p := range s.points {
		matches = append(matches, Match{
			ID:       p.ID,
			Content:  p.Content,
			Metadata: copyMetadata(p.Metadata),
			Score:    Cosine(vector, p.Vector),
		})
	}
	return topK(matches, k), nil
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
