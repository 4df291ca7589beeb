package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jonathan/docmind/internal/types"
)

// GeminiClient implements Completer for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "API key is required"}
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "failed to create client", Cause: err}
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// StreamChat implements Completer. System messages become the system
// instruction, the last message is sent and everything before it is history.
func (c *GeminiClient) StreamChat(ctx context.Context, messages []types.ChatMessage) (Stream, error) {
	modelName := c.config.GetModel(TierStandard)
	if modelName == "" {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "no model configured"}
	}

	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "conversation has no messages to send"}
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	for _, m := range turns[:len(turns)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	// The request is sent here; failures surface from the first Next.
	streamCtx, cancel := context.WithCancel(ctx)
	watchdog := newIdleWatchdog(c.config.Timeout, cancel)
	watchdog.arm()
	iter := session.SendMessageStream(streamCtx, genai.Text(turns[len(turns)-1].Content))
	watchdog.disarm()
	return &geminiStream{iter: iter, cancel: cancel, watchdog: watchdog}, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func splitSystem(messages []types.ChatMessage) (string, []types.ChatMessage) {
	var system []string
	turns := make([]types.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

func geminiRole(role types.Role) string {
	if role == types.RoleAssistant {
		return "model"
	}
	return "user"
}

type geminiStream struct {
	iter     *genai.GenerateContentResponseIterator
	cancel   context.CancelFunc
	watchdog *idleWatchdog
	once     sync.Once
}

func (s *geminiStream) Next() (string, error) {
	s.watchdog.arm()
	defer s.watchdog.disarm()

	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			if s.watchdog.expired() {
				return "", s.watchdog.timeoutError(ProviderGemini)
			}
			return "", &ProviderError{Provider: ProviderGemini, Message: "stream failed", Cause: err}
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.once.Do(func() {
		s.watchdog.disarm()
		s.cancel()
	})
	return nil
}

// responseText extracts text parts from a Gemini response
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
