// Package config provides configuration loading and validation for the docmind
// server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/docmind/internal/schemas"
)

// Config is the full docmind configuration. Every field is optional in a config
// file; missing values keep the defaults from Default.
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Crawler     CrawlerConfig     `json:"crawler" yaml:"crawler"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	LLM         LLMConfig         `json:"llm" yaml:"llm"`
	VectorStore VectorStoreConfig `json:"vector_store" yaml:"vector_store"`
	Indexer     IndexerConfig     `json:"indexer" yaml:"indexer"`
	Retrieval   RetrievalConfig   `json:"retrieval" yaml:"retrieval"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int            `json:"port" yaml:"port"`
	UploadDir      string         `json:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes int64          `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	AllowedOrigins []string       `json:"allowed_origins" yaml:"allowed_origins"`
	RateLimits     map[string]int `json:"rate_limits" yaml:"rate_limits"` // requests per minute, keyed by path
}

// CrawlerConfig configures site crawling.
type CrawlerConfig struct {
	MaxPages      int      `json:"max_pages" yaml:"max_pages"`
	Workers       int      `json:"workers" yaml:"workers"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
	UseBrowser    bool     `json:"use_browser" yaml:"use_browser"`
	RenderTimeout Duration `json:"render_timeout" yaml:"render_timeout"`
	UserAgent     string   `json:"user_agent" yaml:"user_agent"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider string   `json:"provider" yaml:"provider"`
	Model    string   `json:"model" yaml:"model"`
	BaseURL  string   `json:"base_url" yaml:"base_url"`
	APIKey   string   `json:"api_key" yaml:"api_key"` // server-side fallback key
	Timeout  Duration `json:"timeout" yaml:"timeout"`
}

// LLMConfig configures the chat completion provider.
type LLMConfig struct {
	Provider    string   `json:"provider" yaml:"provider"`
	Model       string   `json:"model" yaml:"model"`
	BaseURL     string   `json:"base_url" yaml:"base_url"`
	APIKey      string   `json:"api_key" yaml:"api_key"`
	Temperature float32  `json:"temperature" yaml:"temperature"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Backend     string   `json:"backend" yaml:"backend"`
	Collection  string   `json:"collection" yaml:"collection"`
	URL         string   `json:"url" yaml:"url"`
	APIKey      string   `json:"api_key" yaml:"api_key"`
	DatabaseURL string   `json:"database_url" yaml:"database_url"`
	Path        string   `json:"path" yaml:"path"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
}

// IndexerConfig configures chunking and embedding batches.
type IndexerConfig struct {
	ChunkSize    int  `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int  `json:"chunk_overlap" yaml:"chunk_overlap"`
	BatchSize    int  `json:"batch_size" yaml:"batch_size"`
	Concurrency  int  `json:"concurrency" yaml:"concurrency"`
	Deduplicate  bool `json:"deduplicate" yaml:"deduplicate"`
	Spreadsheets bool `json:"spreadsheets" yaml:"spreadsheets"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	K int `json:"k" yaml:"k"`
}

// Duration is a time.Duration written as a Go duration string ("10s", "1m30s").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the configuration used when no file or environment overrides are given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			UploadDir:      filepath.Join(os.TempDir(), "docmind-uploads"),
			MaxUploadBytes: 32 << 20,
			AllowedOrigins: []string{"*"},
			RateLimits: map[string]int{
				"/api/chat":   30,
				"/api/ingest": 10,
				"/api/scrape": 5,
			},
		},
		Crawler: CrawlerConfig{
			MaxPages:      50,
			Workers:       4,
			Timeout:       Duration(10 * time.Second),
			RenderTimeout: Duration(30 * time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-large",
			Timeout:  Duration(30 * time.Second),
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4.1",
			Temperature: 0.2,
			Timeout:     Duration(60 * time.Second),
		},
		VectorStore: VectorStoreConfig{
			Backend:    "qdrant",
			Collection: "docmind-collection",
			URL:        "http://localhost:6333",
			Path:       "docmind.db",
			Timeout:    Duration(30 * time.Second),
		},
		Indexer: IndexerConfig{
			ChunkSize:    6000,
			ChunkOverlap: 200,
			BatchSize:    64,
			Concurrency:  2,
		},
		Retrieval: RetrievalConfig{K: 3},
	}
}

// Load reads a JSON or YAML configuration file, validates it against the
// embedded schema and overlays it on Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	var document any

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
		if document == nil {
			return &cfg, nil
		}
		if err := schemas.ValidateDocument(schemas.ConfigSchema, document); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
		if err := schemas.ValidateDocument(schemas.ConfigSchema, document); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}

	return &cfg, nil
}

// ApplyEnv overlays well-known environment variables onto the configuration.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.VectorStore.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.VectorStore.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.VectorStore.DatabaseURL = v
	}
	if v := os.Getenv("DOCMIND_VECTOR_BACKEND"); v != "" {
		c.VectorStore.Backend = v
	}
	if v := os.Getenv("DOCMIND_COLLECTION"); v != "" {
		c.VectorStore.Collection = v
	}
	if v := os.Getenv("DOCMIND_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: DOCMIND_PORT must be an integer: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(providerKeyEnv(c.Embedding.Provider)); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv(providerKeyEnv(c.LLM.Provider)); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	return nil
}

func providerKeyEnv(provider string) string {
	if provider == "gemini" {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' must be between 1 and 65535")
	}
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("config error: 'crawler.max_pages' must be at least 1")
	}
	if c.Crawler.Workers < 1 {
		return fmt.Errorf("config error: 'crawler.workers' must be at least 1")
	}
	if c.Retrieval.K < 1 {
		return fmt.Errorf("config error: 'retrieval.k' must be at least 1")
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("config error: 'vector_store.collection' is required")
	}
	if c.Indexer.ChunkSize > 0 && c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		return fmt.Errorf("config error: 'indexer.chunk_overlap' must be smaller than 'indexer.chunk_size'")
	}

	switch c.VectorStore.Backend {
	case "qdrant":
		if c.VectorStore.URL == "" {
			return fmt.Errorf("config error: qdrant backend requires 'vector_store.url'")
		}
	case "pgvector":
		if c.VectorStore.DatabaseURL == "" {
			return fmt.Errorf("config error: pgvector backend requires 'vector_store.database_url' or DATABASE_URL")
		}
	case "bolt":
		if c.VectorStore.Path == "" {
			return fmt.Errorf("config error: bolt backend requires 'vector_store.path'")
		}
	case "memory":
	default:
		return fmt.Errorf("config error: unknown vector store backend %q", c.VectorStore.Backend)
	}

	for _, p := range []string{c.Embedding.Provider, c.LLM.Provider} {
		if p != "openai" && p != "gemini" {
			return fmt.Errorf("config error: unknown provider %q", p)
		}
	}
	return nil
}
