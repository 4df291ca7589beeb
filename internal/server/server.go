// Package server provides the HTTP API for docmind: file and website
// ingestion plus streamed, retrieval-grounded chat.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/indexer"
	"github.com/jonathan/docmind/internal/llm"
	"github.com/jonathan/docmind/internal/loader"
	"github.com/jonathan/docmind/internal/server/ratelimit"
	"github.com/jonathan/docmind/internal/types"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// EmbedderFactory creates an embedder for a request credential.
type EmbedderFactory interface {
	New(ctx context.Context, apiKey string) (embedding.Embedder, error)
}

// CompleterFactory creates a completion client for a request credential.
type CompleterFactory func(ctx context.Context, apiKey string) (llm.Completer, error)

// SiteCrawler collects same-origin pages starting at a seed URL.
type SiteCrawler interface {
	Crawl(ctx context.Context, seedURL string, maxPages int) ([]types.CrawlPage, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         Config
	deps        Dependencies
	rateLimiter *ratelimit.Limiter
}

// Config holds server configuration
type Config struct {
	Port           int
	UploadDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
	RateLimits     map[string]int // requests per minute by path
	MaxPages       int
	RetrievalK     int
	Indexer        indexer.Options

	// Deployment-wide fallback credentials, used when a request carries none.
	EmbeddingAPIKey string
	LLMAPIKey       string
}

// Dependencies are the components the handlers drive.
type Dependencies struct {
	Store      vectorstore.Store
	Registry   *loader.Registry
	Embedders  EmbedderFactory
	Completers CompleterFactory
	Crawler    SiteCrawler
}

// New creates a new server instance
func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Store == nil || deps.Embedders == nil || deps.Completers == nil || deps.Crawler == nil {
		return nil, fmt.Errorf("server requires a store, embedder factory, completer factory and crawler")
	}
	if deps.Registry == nil {
		deps.Registry = loader.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		deps:        deps,
		rateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig(cfg.RateLimits)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.handler,
		ReadTimeout: 60 * time.Second,
		// No WriteTimeout: chat responses stream for as long as the model generates.
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	log.Println("Server stopped")
	return nil
}

// Close releases the rate limiter and the vector store.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if err := s.deps.Store.Close(); err != nil {
		log.Printf("Error closing vector store: %v", err)
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder keeps the status code for request logs and still exposes Flush for SSE.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %d completed in %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"collection": s.deps.Store.Collection(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure writes err with the status its taxonomy case maps to.
func (s *Server) failure(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[api] %d: %v", status, err)
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int((info.RetryAfter + time.Second - 1) / time.Second)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d RetryAfter=%s",
		info.Limit, info.Remaining, info.RetryAfter)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
