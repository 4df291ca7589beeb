package vectorstore

import (
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore keeps a collection in a single bbolt file and searches it by full scan.
type BoltStore struct {
	db         *bbolt.DB
	collection string
	bucket     []byte
}

type boltRecord struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Vector   []float32      `json:"vector"`
}

// NewBoltStore opens (or creates) the database file at cfg.Path.
func NewBoltStore(cfg Config) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, &StoreError{Backend: BackendBolt, Op: "open", Message: "path is required"}
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &StoreError{Backend: BackendBolt, Op: "open", Cause: err}
	}
	return &BoltStore{db: db, collection: collection, bucket: []byte(collection)}, nil
}

// Collection implements Store.
func (s *BoltStore) Collection() string { return s.collection }

// EnsureCollection implements Store.
func (s *BoltStore) EnsureCollection(_ context.Context, dim int) error {
	if dim <= 0 {
		return &StoreError{Backend: BackendBolt, Op: "ensure collection", Message: "invalid dimension"}
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		return &StoreError{Backend: BackendBolt, Op: "ensure collection", Cause: err}
	}
	return nil
}

// Upsert implements Store.
func (s *BoltStore) Upsert(ctx context.Context, points []Point) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Backend: BackendBolt, Op: "upsert", Cause: err}
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		for _, p := range points {
			data, err := json.Marshal(boltRecord{Content: p.Content, Metadata: p.Metadata, Vector: p.Vector})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(p.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Backend: BackendBolt, Op: "upsert", Cause: err}
	}
	return nil
}

// Search implements Store.
func (s *BoltStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Backend: BackendBolt, Op: "search", Cause: err}
	}
	matches := make([]Match, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(key, value []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return err
			}
			matches = append(matches, Match{
				ID:       string(key),
				Content:  rec.Content,
				Metadata: rec.Metadata,
				Score:    Cosine(vector, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, &StoreError{Backend: BackendBolt, Op: "search", Cause: err}
	}
	return topK(matches, k), nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
