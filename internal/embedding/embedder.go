// Package embedding computes dense vectors for text through a remote provider.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Embedder turns texts into vectors. The i-th vector belongs to the i-th text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Close() error
}

// Provider names an embedding backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Default models per provider.
const (
	DefaultOpenAIModel = "text-embedding-3-large"
	DefaultGeminiModel = "text-embedding-004"
)

// ProviderError represents a failure reported by, or while talking to, an embedding provider.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "embedding provider %s: %s", e.Provider, e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider Provider
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// DefaultTimeout bounds a single embedding request.
const DefaultTimeout = 30 * time.Second

// DefaultConfig returns the OpenAI text-embedding-3-large configuration.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderOpenAI,
		Model:    DefaultOpenAIModel,
		Timeout:  DefaultTimeout,
	}
}

// Factory builds embedders for a per-request credential.
type Factory struct {
	config Config
}

// NewFactory creates a Factory.
func NewFactory(cfg Config) *Factory {
	return &Factory{config: cfg}
}

// New returns an Embedder authenticated with apiKey.
func (f *Factory) New(ctx context.Context, apiKey string) (Embedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Provider: f.config.Provider, Message: "API key is required"}
	}

	switch f.config.Provider {
	case ProviderGemini:
		return NewGeminiEmbedder(ctx, f.config, apiKey)
	case ProviderOpenAI, "":
		return NewOpenAIEmbedder(f.config, apiKey), nil
	default:
		return nil, &ProviderError{Provider: f.config.Provider, Message: "unknown provider"}
	}
}
