package chat

import (
	"encoding/json"

	"github.com/jonathan/docmind/internal/prompts"
	"github.com/jonathan/docmind/internal/types"
)

const promptFile = "chat.json"

// Prompt is the request-scoped input to one completion: the caller's
// preamble, the serialized retrieval context and the conversation history.
// It never aliases the caller's conversation.
type Prompt struct {
	Preamble string
	Context  string
	History  []types.ChatMessage
}

type contextEntry struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Compose builds a Prompt from a preamble, retrieved documents and history.
// The history is copied.
func Compose(preamble string, docs []types.ScoredDocument, history []types.ChatMessage) (*Prompt, error) {
	var serialized string
	if len(docs) == 0 {
		serialized = prompts.MustGet(promptFile, "no-context")
	} else {
		entries := make([]contextEntry, len(docs))
		for i, d := range docs {
			entries[i] = contextEntry{Content: d.Document.Content, Metadata: d.Document.Metadata}
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		serialized = string(data)
	}

	return &Prompt{
		Preamble: preamble,
		Context:  serialized,
		History:  append([]types.ChatMessage(nil), history...),
	}, nil
}

// System renders the grounding instruction.
func (p *Prompt) System() string {
	return prompts.Format(prompts.MustGet(promptFile, "grounding"), map[string]string{
		"Preamble": p.Preamble,
		"Context":  p.Context,
	})
}

// Messages returns a new slice: the grounding system message followed by the history.
func (p *Prompt) Messages() []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(p.History)+1)
	out = append(out, types.ChatMessage{Role: types.RoleSystem, Content: p.System()})
	return append(out, p.History...)
}
