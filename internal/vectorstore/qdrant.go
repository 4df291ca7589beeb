package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QdrantStore talks to Qdrant over its REST API.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrantStore creates a QdrantStore.
func NewQdrantStore(cfg Config) *QdrantStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = "http://localhost:6333"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantStore{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Collection implements Store.
func (s *QdrantStore) Collection() string { return s.collection }

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.baseURL, url.PathEscape(s.collection), suffix)
}

// EnsureCollection implements Store. An existing collection is left as is.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return &StoreError{Backend: BackendQdrant, Op: "ensure collection", Message: "invalid dimension"}
	}

	status, _, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return &StoreError{Backend: BackendQdrant, Op: "ensure collection", Cause: err}
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	status, payload, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body)
	if err != nil {
		return &StoreError{Backend: BackendQdrant, Op: "create collection", Cause: err}
	}
	if status == http.StatusConflict || (status >= 300 && strings.Contains(string(payload), "already exists")) {
		return nil
	}
	if status >= 300 {
		return &StoreError{Backend: BackendQdrant, Op: "create collection", Message: fmt.Sprintf("status %d: %s", status, payload)}
	}
	return nil
}

// Upsert implements Store.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	items := make([]map[string]any, len(points))
	for i, p := range points {
		items[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"content":  p.Content,
				"metadata": p.Metadata,
			},
		}
	}

	status, payload, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": items})
	if err != nil {
		return &StoreError{Backend: BackendQdrant, Op: "upsert", Cause: err}
	}
	if status >= 300 {
		return &StoreError{Backend: BackendQdrant, Op: "upsert", Message: fmt.Sprintf("status %d: %s", status, payload)}
	}
	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any     `json:"id"`
		Score   float64 `json:"score"`
		Payload struct {
			Content  string         `json:"content"`
			Metadata map[string]any `json:"metadata"`
		} `json:"payload"`
	} `json:"result"`
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	status, payload, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req)
	if err != nil {
		return nil, &StoreError{Backend: BackendQdrant, Op: "search", Cause: err}
	}
	if status == http.StatusNotFound {
		return []Match{}, nil
	}
	if status >= 300 {
		return nil, &StoreError{Backend: BackendQdrant, Op: "search", Message: fmt.Sprintf("status %d: %s", status, payload)}
	}

	var resp qdrantSearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &StoreError{Backend: BackendQdrant, Op: "search", Message: "failed to decode response", Cause: err}
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{
			ID:       fmt.Sprint(r.ID),
			Content:  r.Payload.Content,
			Metadata: r.Payload.Metadata,
			Score:    r.Score,
		})
	}
	return matches, nil
}

// Close implements Store.
func (s *QdrantStore) Close() error { return nil }

func (s *QdrantStore) do(ctx context.Context, method, target string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}
