package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/docmind/internal/crawling"
	"github.com/jonathan/docmind/internal/observability"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl a website and write its text corpus",
	Long:  "Crawls same-origin pages from a seed URL and writes corpus.txt and sources.json to the output directory without indexing them.",
	RunE:  runCrawl,
}

var (
	crawlURL       string
	crawlMaxPages  int
	crawlOutputDir string
)

func init() {
	crawlCmd.Flags().StringVarP(&crawlURL, "url", "u", "", "Seed URL (required)")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "Maximum pages to crawl (default from config, 50)")
	crawlCmd.Flags().StringVarP(&crawlOutputDir, "out", "o", "", "Output directory (required)")

	if err := crawlCmd.MarkFlagRequired("url"); err != nil {
		panic(fmt.Sprintf("failed to mark url flag as required: %v", err))
	}
	if err := crawlCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	maxPages := crawlMaxPages
	if maxPages <= 0 {
		maxPages = cfg.Crawler.MaxPages
	}

	if err := os.MkdirAll(crawlOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", crawlOutputDir, err)
	}

	pages, err := newCrawler(cfg).Crawl(commandContext(cmd), crawlURL, maxPages)
	if err != nil {
		return fmt.Errorf("failed to crawl %s: %w", crawlURL, err)
	}
	if len(pages) == 0 {
		return &crawling.EmptyCrawlError{SeedURL: crawlURL}
	}
	if verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintCrawl(crawlURL, pages)
	}

	corpus := crawling.BuildWebsiteCorpus(pages)

	corpusPath := filepath.Join(crawlOutputDir, "corpus.txt")
	if err := os.WriteFile(corpusPath, []byte(corpus.Corpus), 0644); err != nil {
		return fmt.Errorf("failed to write corpus file %s: %w", corpusPath, err)
	}

	sourcesPath := filepath.Join(crawlOutputDir, "sources.json")
	sourcesJSON, err := json.MarshalIndent(corpus.Sources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sources to JSON: %w", err)
	}
	if err := os.WriteFile(sourcesPath, sourcesJSON, 0644); err != nil {
		return fmt.Errorf("failed to write sources file %s: %w", sourcesPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Crawled %d pages from %s\n", len(pages), crawlURL)
	fmt.Fprintf(cmd.OutOrStdout(), "  Corpus:  %s\n", corpusPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources: %s\n", sourcesPath)
	return nil
}
