package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/docmind/internal/crawling"
	"github.com/jonathan/docmind/internal/indexer"
	"github.com/jonathan/docmind/internal/loader"
	"github.com/jonathan/docmind/internal/observability"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index a file or a website into the vector store",
	Long:  "Loads a local file (by declared or detected MIME type) or crawls a website, then embeds and stores the content in the configured collection.",
	RunE:  runIngest,
}

var (
	ingestFile   string
	ingestType   string
	ingestURL    string
	ingestAPIKey string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "File to index")
	ingestCmd.Flags().StringVarP(&ingestType, "type", "t", "", "Declared MIME type (default: detected from the file extension)")
	ingestCmd.Flags().StringVarP(&ingestURL, "url", "u", "", "Website to crawl and index")
	ingestCmd.Flags().StringVar(&ingestAPIKey, "api-key", "", "Embedding API key (overrides OPENAI_API_KEY / GEMINI_API_KEY)")
	ingestCmd.MarkFlagsMutuallyExclusive("file", "url")
	ingestCmd.MarkFlagsOneRequired("file", "url")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	src, label, cleanup, err := ingestSource(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := newEmbedder(ctx, cfg, ingestAPIKey)
	if err != nil {
		return err
	}
	defer embedder.Close()

	handle, err := indexer.New(newRegistry(cfg), embedder, store, indexerOptions(cfg)).Index(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", label, err)
	}

	if verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintIndexed(label, handle.Collection, handle.Chunks)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d chunks into %s\n", label, handle.Chunks, handle.Collection)
	return nil
}

// ingestSource builds the loader source for the command flags.
func ingestSource(ctx context.Context) (loader.Source, string, func(), error) {
	if ingestURL != "" {
		pages, err := newCrawler(cfg).Crawl(ctx, ingestURL, cfg.Crawler.MaxPages)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to crawl %s: %w", ingestURL, err)
		}
		if len(pages) == 0 {
			return nil, "", nil, &crawling.EmptyCrawlError{SeedURL: ingestURL}
		}
		src := loader.TextSource{
			Content:  crawling.BuildCorpus(pages),
			Metadata: map[string]any{"source": ingestURL, "type": "website", "pages": len(pages)},
		}
		return src, fmt.Sprintf("%s (%d pages)", ingestURL, len(pages)), func() {}, nil
	}

	declared := ingestType
	if declared == "" {
		declared = mime.TypeByExtension(filepath.Ext(ingestFile))
	}
	if declared == "" {
		return nil, "", nil, fmt.Errorf("cannot detect the type of %s: pass --type", ingestFile)
	}

	// The indexer removes the file it loads, so it gets a copy.
	tmp, err := copyToTemp(ingestFile)
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp) }
	return loader.FileSource{Path: tmp, DeclaredType: declared}, filepath.Base(ingestFile), cleanup, nil
}

func copyToTemp(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "docmind-ingest-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return out.Name(), nil
}
