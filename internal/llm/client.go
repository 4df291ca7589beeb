package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/docmind/internal/types"
)

// Completer streams chat completions.
type Completer interface {
	// StreamChat starts a completion for the conversation. The returned Stream
	// must be closed by the caller.
	StreamChat(ctx context.Context, messages []types.ChatMessage) (Stream, error)
	// Close releases any resources held by the client
	Close() error
}

// Stream yields completion text incrementally.
type Stream interface {
	// Next blocks for the next text fragment. It returns io.EOF once the
	// provider has finished.
	Next() (string, error)
	// Close stops the stream and releases the underlying connection.
	Close() error
}

// ProviderError represents a completion provider failure.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "completion provider %s: %s", e.Provider, e.Message)
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

// NewCompleter creates a Completer for the configured provider.
func NewCompleter(ctx context.Context, config *Config, apiKey string) (Completer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Provider: config.Provider, Message: "API key is required"}
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenAI, "":
		return NewOpenAIClient(config, apiKey), nil
	default:
		return nil, &ProviderError{Provider: config.Provider, Message: "unknown provider"}
	}
}

// Collect drains a stream into the full answer and closes it.
func Collect(stream Stream) (string, error) {
	defer stream.Close()
	var b strings.Builder
	for {
		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(delta)
	}
}
