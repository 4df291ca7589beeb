package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder embeds text with a Gemini embedding model.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiEmbedder creates a GeminiEmbedder.
func NewGeminiEmbedder(ctx context.Context, cfg Config, apiKey string) (*GeminiEmbedder, error) {
	if cfg.Model == "" || cfg.Model == DefaultOpenAIModel {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "failed to create client", Cause: err}
	}
	return &GeminiEmbedder{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Name implements Embedder.
func (e *GeminiEmbedder) Name() string { return "gemini:" + e.model }

// Embed implements Embedder with a single batch request.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := em.BatchEmbedContents(callCtx, batch)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &ProviderError{
				Provider: ProviderGemini,
				Message:  fmt.Sprintf("no response within %s", e.timeout),
				Cause:    context.DeadlineExceeded,
			}
		}
		return nil, &ProviderError{Provider: ProviderGemini, Message: "batch embed failed", Cause: err}
	}
	if len(res.Embeddings) != len(texts) {
		return nil, &ProviderError{
			Provider: ProviderGemini,
			Message:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(res.Embeddings)),
		}
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, &ProviderError{Provider: ProviderGemini, Message: fmt.Sprintf("empty embedding at index %d", i)}
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Close implements Embedder.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
