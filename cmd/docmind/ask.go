package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/docmind/internal/chat"
	"github.com/jonathan/docmind/internal/config"
	"github.com/jonathan/docmind/internal/llm"
	"github.com/jonathan/docmind/internal/observability"
	"github.com/jonathan/docmind/internal/retrieval"
	"github.com/jonathan/docmind/internal/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed content",
	Long:  "Retrieves the most relevant indexed chunks for the question and streams a grounded answer to stdout.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var (
	askSystem string
	askAPIKey string
	askK      int
)

func init() {
	askCmd.Flags().StringVarP(&askSystem, "system", "s", "", "System instruction prepended to the grounding prompt")
	askCmd.Flags().StringVar(&askAPIKey, "api-key", "", "Provider API key used for both embedding and completion")
	askCmd.Flags().IntVarP(&askK, "top-k", "k", 0, "Number of chunks to retrieve (default from config, 3)")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	question := strings.Join(args, " ")

	k := askK
	if k <= 0 {
		k = cfg.Retrieval.K
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := newEmbedder(ctx, cfg, askAPIKey)
	if err != nil {
		return err
	}
	defer embedder.Close()

	completer, err := llm.NewCompleter(ctx, llmConfig(cfg), config.ResolveAPIKey(askAPIKey, cfg.LLM.APIKey))
	if err != nil {
		return err
	}
	defer completer.Close()

	var conversation []types.ChatMessage
	if askSystem != "" {
		conversation = append(conversation, types.ChatMessage{Role: types.RoleSystem, Content: askSystem})
	}
	conversation = append(conversation, types.ChatMessage{Role: types.RoleUser, Content: question})

	orchestrator := chat.New(retrieval.New(embedder, store, k), completer, k)
	turn, err := orchestrator.Prepare(ctx, conversation)
	if err != nil {
		return err
	}
	defer turn.Close()

	out := cmd.OutOrStdout()
	if verbose {
		observability.NewPrinter(out).PrintSources(turn.Sources)
	}

	err = turn.Relay(ctx, func(delta types.TextDelta) error {
		_, werr := fmt.Fprint(out, delta.Content)
		return werr
	})
	fmt.Fprintln(out)
	return err
}
