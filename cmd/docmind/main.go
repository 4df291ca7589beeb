// Package main provides the docmind CLI: an HTTP API server plus commands to
// crawl, ingest and query indexed content from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/docmind/internal/config"
)

var (
	configPath string
	verbose    bool

	// cfg is resolved once per invocation before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docmind",
	Short: "Retrieval-augmented chat over your documents and websites",
	Long:  "docmind crawls websites and loads documents into a vector store, then answers questions grounded in the indexed content.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed summaries")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
