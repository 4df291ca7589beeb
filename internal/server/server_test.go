package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/llm"
	"github.com/jonathan/docmind/internal/types"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// wordEmbedder hashes lowercase words into a small bag-of-words vector.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%32]++
		}
		out[i] = v
	}
	return out, nil
}

func (wordEmbedder) Name() string { return "words" }
func (wordEmbedder) Close() error { return nil }

type fakeEmbedders struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeEmbedders) New(_ context.Context, apiKey string) (embedding.Embedder, error) {
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()
	if apiKey == "" {
		return nil, &embedding.ProviderError{Provider: "fake", Message: "API key is required"}
	}
	return wordEmbedder{}, nil
}

type fakeStream struct {
	deltas []string
	err    error
}

func (s *fakeStream) Next() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeCompleter struct {
	deltas   []string
	err      error
	messages []types.ChatMessage
}

func (c *fakeCompleter) StreamChat(_ context.Context, messages []types.ChatMessage) (llm.Stream, error) {
	c.messages = messages
	return &fakeStream{deltas: append([]string(nil), c.deltas...), err: c.err}, nil
}

func (c *fakeCompleter) Close() error { return nil }

type fakeCrawler struct {
	pages    []types.CrawlPage
	err      error
	maxPages int
}

func (c *fakeCrawler) Crawl(_ context.Context, _ string, maxPages int) ([]types.CrawlPage, error) {
	c.maxPages = maxPages
	return c.pages, c.err
}

type testServer struct {
	*Server
	store     *vectorstore.MemoryStore
	embedders *fakeEmbedders
	completer *fakeCompleter
	crawler   *fakeCrawler
	uploadDir string
	llmKeys   []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	ts := &testServer{
		store:     vectorstore.NewMemoryStore(vectorstore.DefaultCollection),
		embedders: &fakeEmbedders{},
		completer: &fakeCompleter{deltas: []string{"Hello", " world"}},
		crawler:   &fakeCrawler{},
		uploadDir: t.TempDir(),
	}

	s, err := New(Config{
		UploadDir:       ts.uploadDir,
		RetrievalK:      3,
		EmbeddingAPIKey: "server-key",
		LLMAPIKey:       "server-key",
	}, Dependencies{
		Store:     ts.store,
		Embedders: ts.embedders,
		Completers: func(_ context.Context, apiKey string) (llm.Completer, error) {
			ts.llmKeys = append(ts.llmKeys, apiKey)
			return ts.completer, nil
		},
		Crawler: ts.crawler,
	})
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)

	ts.Server = s
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename, contentType, content, apiKey string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if apiKey != "" {
		require.NoError(t, mw.WriteField("apiKey", apiKey))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"]
}

func assertUploadDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploads should be removed after the request")
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "docmind-collection", resp["collection"])
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{UploadDir: t.TempDir()}, Dependencies{})
	assert.Error(t, err)
}

func TestIngest_PlainText(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(uploadRequest(t, "notes.txt", "text/plain", "Docmind indexes uploaded notes.", "client-key"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp types.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "notes.txt", resp.File)
	assert.Equal(t, 1, resp.Chunks)
	assert.Equal(t, 1, ts.store.Len())
	assert.Equal(t, []string{"client-key"}, ts.embedders.keys)
	assertUploadDirEmpty(t, ts.uploadDir)
}

func TestIngest_FallbackKey(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(uploadRequest(t, "notes.txt", "text/plain; charset=utf-8", "some text", ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"server-key"}, ts.embedders.keys)
}

func TestIngest_UnsupportedType(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(uploadRequest(t, "bundle.zip", "application/zip", "PK...", "k"))

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	msg := decodeError(t, w)
	assert.Contains(t, msg, "application/zip")
	assert.Contains(t, msg, "text/plain")
	assert.Equal(t, 0, ts.store.Len())
	assert.Empty(t, ts.embedders.keys)
	assertUploadDirEmpty(t, ts.uploadDir)
}

func TestIngest_MissingFile(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("apiKey", "k"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "file")
}

func TestIngest_NotMultipart(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(t, "/api/ingest", map[string]string{"file": "x"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest_EmptyFile(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(uploadRequest(t, "blank.txt", "text/plain", "   \n ", "k"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assertUploadDirEmpty(t, ts.uploadDir)
}

func TestIngest_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.MaxUploadBytes = 512

	w := ts.do(uploadRequest(t, "big.txt", "text/plain", strings.Repeat("a", 4096), "k"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestScrape_IndexesCorpus(t *testing.T) {
	ts := newTestServer(t)
	ts.crawler.pages = []types.CrawlPage{
		{URL: "https://www.example.test", Text: "Welcome home"},
		{URL: "https://www.example.test/about", Text: "About us"},
	}

	w := ts.do(jsonRequest(t, "/api/scrape", types.ScrapeRequest{URL: "https://www.example.test", APIKey: "k"}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp types.ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Website indexed successfully", resp.Message)
	assert.Equal(t, "Example", resp.Title)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, 50, ts.crawler.maxPages)

	matches, err := ts.store.Search(context.Background(), make([]float32, 32), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Content, "URL: https://www.example.test/about")
	assert.Contains(t, matches[0].Content, "\n\n---\n\n")
	assert.Equal(t, "website", matches[0].Metadata["type"])
}

func TestScrape_EmptyCrawl(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(t, "/api/scrape", types.ScrapeRequest{URL: "https://example.test", APIKey: "k"}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, ts.store.Len())
}

func TestScrape_InvalidURL(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(t, "/api/scrape", map[string]string{"url": "not a url"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "url")
}

func TestScrape_CrawlerFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.crawler.err = errors.New("boom")

	w := ts.do(jsonRequest(t, "/api/scrape", types.ScrapeRequest{URL: "https://example.test"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChat_StreamsDeltas(t *testing.T) {
	ts := newTestServer(t)
	seed := uploadRequest(t, "facts.txt", "text/plain", "X is Y", "k")
	require.Equal(t, http.StatusOK, ts.do(seed).Code)

	w := ts.do(jsonRequest(t, "/api/chat", types.ChatRequest{
		Messages: []types.ChatMessage{
			{Role: types.RoleSystem, Content: "be terse"},
			{Role: types.RoleUser, Content: "What is X?"},
		},
		APIKey: "client-key",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"content\":\"Hello\"}\n\ndata: {\"content\":\" world\"}\n\n", w.Body.String())

	require.NotEmpty(t, ts.completer.messages)
	system := ts.completer.messages[0]
	assert.Equal(t, types.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "be terse")
	assert.Contains(t, system.Content, "X is Y")
	assert.Equal(t, []string{"client-key"}, ts.llmKeys)
}

func TestChat_MidStreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.completer.deltas = []string{"partial"}
	ts.completer.err = &llm.ProviderError{Provider: "fake", Message: "connection reset"}

	w := ts.do(jsonRequest(t, "/api/chat", types.ChatRequest{
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {\"content\":\"partial\"}\n\n"))
	assert.Contains(t, body, "event: error\n")
}

func TestChat_MalformedConversation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(t, "/api/chat", types.ChatRequest{
		Messages: []types.ChatMessage{
			{Role: types.RoleUser, Content: "hi"},
			{Role: types.RoleAssistant, Content: "hello"},
		},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Nil(t, ts.completer.messages)
}

func TestChat_InvalidRole(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(t, "/api/chat", map[string]any{
		"messages": []map[string]string{{"role": "tool", "content": "x"}},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "role")
}

func TestChat_MissingCredential(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.EmbeddingAPIKey = ""

	w := ts.do(jsonRequest(t, "/api/chat", types.ChatRequest{
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
	}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodOptions, "/api/chat", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_AllowedOrigins(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.AllowedOrigins = []string{"https://app.example.test"}
	handler := ts.withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	allowed := httptest.NewRequest(http.MethodGet, "/health", nil)
	allowed.Header.Set("Origin", "https://app.example.test")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, allowed)
	assert.Equal(t, "https://app.example.test", w.Header().Get("Access-Control-Allow-Origin"))

	denied := httptest.NewRequest(http.MethodGet, "/health", nil)
	denied.Header.Set("Origin", "https://evil.example.test")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, denied)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_Scrape(t *testing.T) {
	ts := newTestServer(t)
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	ts.rateLimiter.Stop()
	ts.cfg.RateLimits = map[string]int{"/api/scrape": 5}
	s, err := New(ts.cfg, ts.deps)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, jsonRequest(t, "/api/scrape", types.ScrapeRequest{URL: "https://example.test"}))
		return w
	}

	first := do()
	assert.Equal(t, http.StatusNotFound, first.Code)
	assert.Equal(t, "5", first.Header().Get("X-RateLimit-Limit"))

	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
}
