package types

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared because validator caches struct metadata per instance.
var validate = validator.New()

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	APIKey   string        `json:"apiKey,omitempty"`
}

// ScrapeRequest asks the server to crawl and index a website.
type ScrapeRequest struct {
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"apiKey,omitempty"`
}

// IngestResponse is returned after a file upload is indexed.
type IngestResponse struct {
	OK     bool   `json:"ok"`
	File   string `json:"file"`
	Chunks int    `json:"chunks"`
}

// ScrapeResponse is returned after a website is indexed.
type ScrapeResponse struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	Pages   int    `json:"pages"`
	Chunks  int    `json:"chunks"`
}

// Validate validates the ChatRequest using the validator.
func (r *ChatRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the ScrapeRequest using the validator.
func (r *ScrapeRequest) Validate() error {
	return validate.Struct(r)
}
