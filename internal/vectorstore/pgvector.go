package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PGVectorStore keeps a collection in a PostgreSQL table with a pgvector column.
type PGVectorStore struct {
	pool       *pgxpool.Pool
	collection string
	table      string
}

// NewPGVectorStore connects to PostgreSQL, installs the vector extension if
// needed and registers the vector types on every pooled connection.
func NewPGVectorStore(ctx context.Context, cfg Config) (*PGVectorStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, &StoreError{Backend: BackendPGVector, Op: "connect", Message: "database URL is required"}
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "connect", Cause: err}
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	_ = conn.Close(ctx)
	if err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "create extension", Cause: err}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "connect", Message: "invalid database URL", Cause: err}
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "connect", Cause: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &StoreError{Backend: BackendPGVector, Op: "ping", Cause: err}
	}

	return &PGVectorStore{
		pool:       pool,
		collection: collection,
		table:      pgx.Identifier{tableName(collection)}.Sanitize(),
	}, nil
}

// tableName maps a collection name onto a safe table name.
func tableName(collection string) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return '_'
	}, collection)
	return "chunks_" + name
}

// Collection implements Store.
func (s *PGVectorStore) Collection() string { return s.collection }

// EnsureCollection implements Store.
func (s *PGVectorStore) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return &StoreError{Backend: BackendPGVector, Op: "ensure collection", Message: "invalid dimension"}
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table, dim))
	if err != nil {
		return &StoreError{Backend: BackendPGVector, Op: "ensure collection", Cause: err}
	}
	return nil
}

// Upsert implements Store.
func (s *PGVectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET content = $2, metadata = $3, embedding = $4`, s.table)

	batch := &pgx.Batch{}
	for _, p := range points {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return &StoreError{Backend: BackendPGVector, Op: "upsert", Message: "failed to marshal metadata", Cause: err}
		}
		batch.Queue(query, p.ID, p.Content, meta, pgvector.NewVector(p.Vector))
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return &StoreError{Backend: BackendPGVector, Op: "upsert", Cause: err}
	}
	return nil
}

// Search implements Store. Similarity is reported as 1 - cosine distance.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, s.table).Scan(&exists); err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "search", Cause: err}
	}
	if !exists {
		return []Match{}, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id::text, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM %s
		 ORDER BY embedding <=> $1
		 LIMIT $2`, s.table),
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "search", Cause: err}
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		var meta []byte
		if err := rows.Scan(&m.ID, &m.Content, &meta, &m.Score); err != nil {
			return nil, &StoreError{Backend: BackendPGVector, Op: "search", Cause: err}
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, &StoreError{Backend: BackendPGVector, Op: "search", Message: "failed to decode metadata", Cause: err}
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Backend: BackendPGVector, Op: "search", Cause: err}
	}
	return matches, nil
}

// Close implements Store.
func (s *PGVectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
