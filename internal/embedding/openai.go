package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewOpenAIEmbedder creates an OpenAIEmbedder.
func NewOpenAIEmbedder(cfg Config, apiKey string) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     apiKey,
		model:      cfg.Model,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: 3,
		backoff:    retryDelay,
	}
}

// Name implements Embedder.
func (e *OpenAIEmbedder) Name() string { return "openai:" + e.model }

// Close implements Embedder.
func (e *OpenAIEmbedder) Close() error { return nil }

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder. Rate-limit and server errors are retried with
// capped exponential backoff, honoring Retry-After.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "failed to encode request", Cause: err}
	}
	url := fmt.Sprintf("%s/embeddings", e.baseURL)

	var lastErr error
	var delay time.Duration
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if delay <= 0 {
				delay = e.backoff(attempt - 1)
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, &ProviderError{Provider: ProviderOpenAI, Message: "request cancelled", Cause: err}
			}
		}

		vectors, retry, err := e.do(ctx, url, body, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retry.ok || ctx.Err() != nil {
			return nil, err
		}
		delay = retry.after
	}
	return nil, lastErr
}

// retryHint tells Embed whether and when a failed attempt may be repeated.
type retryHint struct {
	ok    bool
	after time.Duration
}

func (e *OpenAIEmbedder) do(ctx context.Context, url string, body []byte, want int) ([][]float32, retryHint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, retryHint{}, &ProviderError{Provider: ProviderOpenAI, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, retryHint{ok: true}, &ProviderError{Provider: ProviderOpenAI, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryHint{ok: true}, &ProviderError{Provider: ProviderOpenAI, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		hint := retryHint{ok: true}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			hint.after = time.Duration(secs) * time.Second
		}
		return nil, hint, &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: "embedding request failed"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retryHint{}, &ProviderError{
			Provider:   ProviderOpenAI,
			StatusCode: resp.StatusCode,
			Message:    "embedding request rejected: " + truncate(string(payload), 200),
		}
	}

	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, retryHint{}, &ProviderError{Provider: ProviderOpenAI, Message: "failed to decode response", Cause: err}
	}
	if len(out.Data) != want {
		return nil, retryHint{}, &ProviderError{
			Provider: ProviderOpenAI,
			Message:  fmt.Sprintf("expected %d embeddings, got %d", want, len(out.Data)),
		}
	}

	vectors := make([][]float32, want)
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= want || len(d.Embedding) == 0 {
			return nil, retryHint{}, &ProviderError{Provider: ProviderOpenAI, Message: fmt.Sprintf("invalid embedding at index %d", d.Index)}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, retryHint{}, nil
}

// retryDelay is exponential backoff from 200ms capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
