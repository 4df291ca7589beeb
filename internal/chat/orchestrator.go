// Package chat answers a conversation turn by retrieving indexed context,
// composing a grounded prompt and relaying the model's streamed answer.
package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/jonathan/docmind/internal/llm"
	"github.com/jonathan/docmind/internal/retrieval"
	"github.com/jonathan/docmind/internal/types"
)

// Retriever returns the documents most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]types.ScoredDocument, error)
}

// ConversationError is returned for a conversation that cannot be answered.
type ConversationError struct {
	Message string
}

func (e *ConversationError) Error() string {
	return "invalid conversation: " + e.Message
}

// Orchestrator runs chat turns. It keeps no per-conversation state.
type Orchestrator struct {
	retriever Retriever
	completer llm.Completer
	k         int
}

// New creates an Orchestrator. A k of zero or less uses retrieval.DefaultK.
func New(retriever Retriever, completer llm.Completer, k int) *Orchestrator {
	if k <= 0 {
		k = retrieval.DefaultK
	}
	return &Orchestrator{retriever: retriever, completer: completer, k: k}
}

// Turn is a prepared answer whose stream has been opened but not yet relayed.
type Turn struct {
	Prompt  *Prompt
	Sources []types.ScoredDocument
	stream  llm.Stream
}

// Prepare extracts the query and preamble, retrieves context, composes the
// prompt and opens the completion stream. Nothing has been emitted when it
// returns an error. The caller's slice is never modified.
func (o *Orchestrator) Prepare(ctx context.Context, conversation []types.ChatMessage) (*Turn, error) {
	if len(conversation) == 0 {
		return nil, &ConversationError{Message: "no messages"}
	}
	last := conversation[len(conversation)-1]
	if last.Role != types.RoleUser || strings.TrimSpace(last.Content) == "" {
		return nil, &ConversationError{Message: "last message must be a non-empty user message"}
	}

	preamble, history := "", conversation
	if conversation[0].Role == types.RoleSystem {
		preamble, history = conversation[0].Content, conversation[1:]
	}

	docs, err := o.retriever.Retrieve(ctx, last.Content, o.k)
	if err != nil {
		return nil, err
	}

	prompt, err := Compose(preamble, docs, history)
	if err != nil {
		return nil, err
	}

	stream, err := o.completer.StreamChat(ctx, prompt.Messages())
	if err != nil {
		return nil, err
	}

	log.Printf("[chat] prepared turn: %d history messages, %d context chunks", len(history), len(docs))
	return &Turn{Prompt: prompt, Sources: docs, stream: stream}, nil
}

// Relay forwards each delta to emit as soon as it arrives, in provider order.
// It returns nil when the provider finishes, and stops early when ctx ends or
// emit fails. The stream is always closed on return.
func (t *Turn) Relay(ctx context.Context, emit func(types.TextDelta) error) error {
	defer t.stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delta, err := t.stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if delta == "" {
			continue
		}
		if err := emit(types.TextDelta{Content: delta}); err != nil {
			return err
		}
	}
}

// Close releases the stream of a turn that will not be relayed.
func (t *Turn) Close() error {
	return t.stream.Close()
}

// Converse prepares a turn and relays it.
func (o *Orchestrator) Converse(ctx context.Context, conversation []types.ChatMessage, emit func(types.TextDelta) error) error {
	turn, err := o.Prepare(ctx, conversation)
	if err != nil {
		return err
	}
	return turn.Relay(ctx, emit)
}
