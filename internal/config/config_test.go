package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docmind/internal/schemas"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "docmind-collection", cfg.VectorStore.Collection)
	assert.Equal(t, 50, cfg.Crawler.MaxPages)
	assert.Equal(t, 10*time.Second, cfg.Crawler.Timeout.Std())
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
}

func TestLoad_ValidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"crawler": {"max_pages": 10, "timeout": "5s"},
		"vector_store": {"backend": "bolt", "path": "/tmp/docmind.db"},
		"retrieval": {"k": 5}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Crawler.MaxPages)
	assert.Equal(t, 5*time.Second, cfg.Crawler.Timeout.Std())
	assert.Equal(t, "bolt", cfg.VectorStore.Backend)
	assert.Equal(t, 5, cfg.Retrieval.K)
	// untouched sections keep defaults
	assert.Equal(t, "docmind-collection", cfg.VectorStore.Collection)
	assert.Equal(t, 4, cfg.Crawler.Workers)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 9090
llm:
  provider: gemini
  model: gemini-2.0-flash
  timeout: 2m
indexer:
  deduplicate: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout.Std())
	assert.True(t, cfg.Indexer.Deduplicate)
	assert.Equal(t, 64, cfg.Indexer.BatchSize)
}

func TestLoad_EmptyYAML(t *testing.T) {
	path := writeConfig(t, "config.yml", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Crawler, cfg.Crawler)
}

func TestLoad_SchemaViolation(t *testing.T) {
	path := writeConfig(t, "config.json", `{"crawler": {"max_pages": 0}}`)

	cfg, err := Load(path)
	assert.Nil(t, cfg)
	var validationErr *schemas.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{ invalid json }`)

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", `k = 3`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.ErrorContains(t, err, "config path is empty")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_API_KEY", "qk")
	t.Setenv("DATABASE_URL", "postgres://localhost/docmind")
	t.Setenv("DOCMIND_PORT", "7000")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.URL)
	assert.Equal(t, "qk", cfg.VectorStore.APIKey)
	assert.Equal(t, "postgres://localhost/docmind", cfg.VectorStore.DatabaseURL)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestApplyEnv_BadPort(t *testing.T) {
	t.Setenv("DOCMIND_PORT", "eighty")

	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero budget", func(c *Config) { c.Crawler.MaxPages = 0 }, "max_pages"},
		{"zero k", func(c *Config) { c.Retrieval.K = 0 }, "retrieval.k"},
		{"no collection", func(c *Config) { c.VectorStore.Collection = "" }, "collection"},
		{"overlap too large", func(c *Config) { c.Indexer.ChunkOverlap = c.Indexer.ChunkSize }, "chunk_overlap"},
		{"pgvector without dsn", func(c *Config) { c.VectorStore.Backend = "pgvector" }, "database_url"},
		{"unknown backend", func(c *Config) { c.VectorStore.Backend = "redis" }, "unknown vector store backend"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "anthropic" }, "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	assert.Equal(t, "req", ResolveAPIKey("req", "fallback"))
	assert.Equal(t, "fallback", ResolveAPIKey("  ", "fallback"))
	assert.Equal(t, "trimmed", ResolveAPIKey(" trimmed "))
	assert.Equal(t, "", ResolveAPIKey("", ""))
}
