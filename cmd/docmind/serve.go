package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server exposing file ingestion, website ingestion and streamed chat endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	store, err := openStore(commandContext(cmd), cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(serverConfig(cfg), server.Dependencies{
		Store:      store,
		Registry:   newRegistry(cfg),
		Embedders:  embedding.NewFactory(embeddingConfig(cfg)),
		Completers: completerFactory(cfg),
		Crawler:    newCrawler(cfg),
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// commandContext returns the command's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
