package main

import (
	"context"
	"fmt"

	"github.com/jonathan/docmind/internal/config"
	"github.com/jonathan/docmind/internal/crawling"
	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/fetch"
	"github.com/jonathan/docmind/internal/indexer"
	"github.com/jonathan/docmind/internal/llm"
	"github.com/jonathan/docmind/internal/loader"
	"github.com/jonathan/docmind/internal/server"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// loadConfig resolves defaults, the optional config file and the environment.
func loadConfig(path string) (*config.Config, error) {
	c := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		c = *loaded
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func newCrawler(c *config.Config) *crawling.Crawler {
	client := fetch.NewClient(&fetch.Options{
		Timeout:   c.Crawler.Timeout.Std(),
		UserAgent: c.Crawler.UserAgent,
	})
	return crawling.New(client, crawling.Options{
		Workers:       c.Crawler.Workers,
		UseBrowser:    c.Crawler.UseBrowser,
		RenderTimeout: c.Crawler.RenderTimeout.Std(),
	})
}

func embeddingConfig(c *config.Config) embedding.Config {
	ec := embedding.Config{
		Provider: embedding.Provider(c.Embedding.Provider),
		Model:    c.Embedding.Model,
		BaseURL:  c.Embedding.BaseURL,
		Timeout:  c.Embedding.Timeout.Std(),
	}
	// The default model name belongs to OpenAI; Gemini gets its own default.
	if ec.Provider == embedding.ProviderGemini && ec.Model == embedding.DefaultOpenAIModel {
		ec.Model = embedding.DefaultGeminiModel
	}
	return ec
}

func llmConfig(c *config.Config) *llm.Config {
	base := llm.DefaultOpenAIConfig()
	if llm.Provider(c.LLM.Provider) == llm.ProviderGemini {
		base = llm.DefaultGeminiConfig()
	}

	lc := base
	if c.LLM.Model != "" && !(base.Provider == llm.ProviderGemini && c.LLM.Model == config.Default().LLM.Model) {
		lc = base.WithModel(llm.TierStandard, c.LLM.Model)
	}
	lc.BaseURL = c.LLM.BaseURL
	lc.Temperature = c.LLM.Temperature
	if t := c.LLM.Timeout.Std(); t > 0 {
		lc.Timeout = t
	}
	return lc
}

func storeConfig(c *config.Config) vectorstore.Config {
	return vectorstore.Config{
		Backend:     c.VectorStore.Backend,
		Collection:  c.VectorStore.Collection,
		URL:         c.VectorStore.URL,
		APIKey:      c.VectorStore.APIKey,
		DatabaseURL: c.VectorStore.DatabaseURL,
		Path:        c.VectorStore.Path,
		Timeout:     c.VectorStore.Timeout.Std(),
	}
}

func indexerOptions(c *config.Config) indexer.Options {
	return indexer.Options{
		ChunkSize:    c.Indexer.ChunkSize,
		ChunkOverlap: c.Indexer.ChunkOverlap,
		BatchSize:    c.Indexer.BatchSize,
		Concurrency:  c.Indexer.Concurrency,
		Deduplicate:  c.Indexer.Deduplicate,
	}
}

func newRegistry(c *config.Config) *loader.Registry {
	r := loader.Default()
	if c.Indexer.Spreadsheets {
		r = r.WithSpreadsheets()
	}
	return r
}

func completerFactory(c *config.Config) server.CompleterFactory {
	lc := llmConfig(c)
	return func(ctx context.Context, apiKey string) (llm.Completer, error) {
		return llm.NewCompleter(ctx, lc, apiKey)
	}
}

func serverConfig(c *config.Config) server.Config {
	return server.Config{
		Port:            c.Server.Port,
		UploadDir:       c.Server.UploadDir,
		MaxUploadBytes:  c.Server.MaxUploadBytes,
		AllowedOrigins:  c.Server.AllowedOrigins,
		RateLimits:      c.Server.RateLimits,
		MaxPages:        c.Crawler.MaxPages,
		RetrievalK:      c.Retrieval.K,
		Indexer:         indexerOptions(c),
		EmbeddingAPIKey: c.Embedding.APIKey,
		LLMAPIKey:       c.LLM.APIKey,
	}
}

// openStore opens the configured vector store.
func openStore(ctx context.Context, c *config.Config) (vectorstore.Store, error) {
	store, err := vectorstore.Open(ctx, storeConfig(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return store, nil
}

// newEmbedder builds an embedder for the given key, falling back to the configured one.
func newEmbedder(ctx context.Context, c *config.Config, apiKey string) (embedding.Embedder, error) {
	key := config.ResolveAPIKey(apiKey, c.Embedding.APIKey)
	if key == "" {
		return nil, fmt.Errorf("API key required: set --api-key or %s", providerKeyEnv(c.Embedding.Provider))
	}
	return embedding.NewFactory(embeddingConfig(c)).New(ctx, key)
}

func providerKeyEnv(provider string) string {
	if provider == string(embedding.ProviderGemini) {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}
