package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jonathan/docmind/internal/types"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient streams from an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
}

// NewOpenAIClient creates an OpenAIClient. The configured timeout bounds the
// wait for response headers and every wait for the next stream event.
func NewOpenAIClient(config *Config, apiKey string) *OpenAIClient {
	base := strings.TrimRight(config.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBaseURL
	}

	return &OpenAIClient{
		baseURL: base,
		apiKey:  apiKey,
		config:  config,
		http:    &http.Client{},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float32         `json:"temperature"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StreamChat implements Completer.
func (c *OpenAIClient) StreamChat(ctx context.Context, messages []types.ChatMessage) (Stream, error) {
	model := c.config.GetModel(TierStandard)
	if model == "" {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "no model configured"}
	}

	req := openAIRequest{Model: model, Stream: true, Temperature: c.config.Temperature}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "failed to encode request", Cause: err}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	watchdog := newIdleWatchdog(c.config.Timeout, cancel)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	watchdog.arm()
	resp, err := c.http.Do(httpReq)
	watchdog.disarm()
	if err != nil {
		cancel()
		if watchdog.expired() {
			return nil, watchdog.timeoutError(ProviderOpenAI)
		}
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "request failed", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{
			Provider:   ProviderOpenAI,
			StatusCode: resp.StatusCode,
			Message:    "completion request rejected: " + strings.TrimSpace(string(payload)),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &openAIStream{body: resp.Body, scanner: scanner, watchdog: watchdog, cancel: cancel}, nil
}

// Close implements Completer.
func (c *OpenAIClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// openAIStream parses "data:" lines of a server-sent event stream.
type openAIStream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	watchdog *idleWatchdog
	cancel   context.CancelFunc
	done     bool
	once     sync.Once
}

func (s *openAIStream) Next() (string, error) {
	s.watchdog.arm()
	defer s.watchdog.disarm()

	for !s.done && s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			break
		}

		var chunk openAIChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", &ProviderError{Provider: ProviderOpenAI, Message: "malformed stream event", Cause: err}
		}
		if chunk.Error != nil {
			return "", &ProviderError{Provider: ProviderOpenAI, Message: chunk.Error.Message}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if s.done {
		return "", io.EOF
	}
	if err := s.scanner.Err(); err != nil {
		if s.watchdog.expired() {
			return "", s.watchdog.timeoutError(ProviderOpenAI)
		}
		return "", &ProviderError{Provider: ProviderOpenAI, Message: "stream interrupted", Cause: err}
	}
	return "", &ProviderError{Provider: ProviderOpenAI, Message: "stream ended before [DONE]"}
}

func (s *openAIStream) Close() error {
	var err error
	s.once.Do(func() {
		s.watchdog.disarm()
		s.cancel()
		err = s.body.Close()
	})
	return err
}
