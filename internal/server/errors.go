package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/docmind/internal/chat"
	"github.com/jonathan/docmind/internal/crawling"
	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/indexer"
	"github.com/jonathan/docmind/internal/llm"
	"github.com/jonathan/docmind/internal/loader"
	"github.com/jonathan/docmind/internal/retrieval"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Wrapped errors keep the status of the error they wrap.
func HTTPStatus(err error) int {
	var (
		validationErr   *ErrValidation
		crawlErr        *crawling.CrawlError
		conversationErr *chat.ConversationError
		queryErr        *retrieval.QueryError
		unsupportedErr  *loader.UnsupportedFormatError
		loadErr         *loader.LoadError
		noContentErr    *indexer.NoContentError
		emptyCrawlErr   *crawling.EmptyCrawlError
		embeddingErr    *embedding.ProviderError
		llmErr          *llm.ProviderError
		storeErr        *vectorstore.StoreError
		maxBytesErr     *http.MaxBytesError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr), errors.As(err, &crawlErr),
		errors.As(err, &conversationErr), errors.As(err, &queryErr):
		return http.StatusBadRequest
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &unsupportedErr):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &loadErr), errors.As(err, &noContentErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &emptyCrawlErr):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &embeddingErr), errors.As(err, &llmErr):
		return http.StatusBadGateway
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
