package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/docmind/internal/chat"
	"github.com/jonathan/docmind/internal/config"
	"github.com/jonathan/docmind/internal/crawling"
	"github.com/jonathan/docmind/internal/indexer"
	"github.com/jonathan/docmind/internal/loader"
	"github.com/jonathan/docmind/internal/retrieval"
	"github.com/jonathan/docmind/internal/types"
)

// handleIngest indexes an uploaded file. The declared part Content-Type
// selects the loader.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.failure(w, err)
			return
		}
		s.failure(w, &ErrValidation{Field: "file", Message: "expected multipart form data: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		s.failure(w, &ErrValidation{Field: "file", Message: "file is required"})
		return
	}
	defer file.Close()

	declared := header.Header.Get("Content-Type")
	if _, err := s.deps.Registry.Lookup(declared); err != nil {
		s.failure(w, err)
		return
	}

	path, err := s.saveUpload(file, header)
	if err != nil {
		s.failure(w, err)
		return
	}
	defer removeUpload(path)

	ctx := r.Context()
	embedder, err := s.deps.Embedders.New(ctx, config.ResolveAPIKey(r.FormValue("apiKey"), s.cfg.EmbeddingAPIKey))
	if err != nil {
		s.failure(w, err)
		return
	}
	defer embedder.Close()

	ix := indexer.New(s.deps.Registry, embedder, s.deps.Store, s.cfg.Indexer)
	handle, err := ix.Index(ctx, loader.FileSource{Path: path, DeclaredType: declared})
	if err != nil {
		s.failure(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, types.IngestResponse{
		OK:     true,
		File:   header.Filename,
		Chunks: handle.Chunks,
	})
}

// saveUpload copies the upload into the upload directory, keeping its extension.
func (s *Server) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(filepath.Base(header.Filename))
	dst, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dst.Name(), nil
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[api] failed to remove upload %s: %v", path, err)
	}
}

// handleScrape crawls a website and indexes the concatenated page texts.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req types.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failure(w, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		s.failure(w, validationError(err))
		return
	}

	ctx := r.Context()
	pages, err := s.deps.Crawler.Crawl(ctx, req.URL, s.cfg.MaxPages)
	if err != nil {
		s.failure(w, err)
		return
	}
	if len(pages) == 0 {
		s.failure(w, &crawling.EmptyCrawlError{SeedURL: req.URL})
		return
	}

	embedder, err := s.deps.Embedders.New(ctx, config.ResolveAPIKey(req.APIKey, s.cfg.EmbeddingAPIKey))
	if err != nil {
		s.failure(w, err)
		return
	}
	defer embedder.Close()

	ix := indexer.New(s.deps.Registry, embedder, s.deps.Store, s.cfg.Indexer)
	handle, err := ix.Index(ctx, loader.TextSource{
		Content: crawling.BuildCorpus(pages),
		Metadata: map[string]any{
			"source": req.URL,
			"type":   "website",
			"pages":  len(pages),
		},
	})
	if err != nil {
		s.failure(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, types.ScrapeResponse{
		Message: "Website indexed successfully",
		Title:   crawling.SiteTitle(req.URL),
		Pages:   len(pages),
		Chunks:  handle.Chunks,
	})
}

// handleChat answers the last user message and streams the answer as
// `data: {"content": ...}` events. Failures before the first byte are JSON errors.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failure(w, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		s.failure(w, validationError(err))
		return
	}

	ctx := r.Context()
	embedder, err := s.deps.Embedders.New(ctx, config.ResolveAPIKey(req.APIKey, s.cfg.EmbeddingAPIKey))
	if err != nil {
		s.failure(w, err)
		return
	}
	defer embedder.Close()

	completer, err := s.deps.Completers(ctx, config.ResolveAPIKey(req.APIKey, s.cfg.LLMAPIKey))
	if err != nil {
		s.failure(w, err)
		return
	}
	defer completer.Close()

	orchestrator := chat.New(retrieval.New(embedder, s.deps.Store, s.cfg.RetrievalK), completer, s.cfg.RetrievalK)
	turn, err := orchestrator.Prepare(ctx, req.Messages)
	if err != nil {
		s.failure(w, err)
		return
	}
	defer turn.Close()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.failure(w, err)
		return
	}

	err = turn.Relay(ctx, func(delta types.TextDelta) error {
		return sse.WriteData(delta)
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("[chat] stream ended with error: %v", err)
		sse.WriteError(err.Error())
	}
}

// validationError converts validator output into an ErrValidation naming the first failing field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ErrValidation{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %q check", fe.Tag()),
		}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}
