// Package loader turns heterogeneous content sources into uniform SourceDocuments.
//
// A Registry maps declared MIME types onto format-specific Loaders. Adding a
// format means registering one more Loader; dispatch itself never changes.
package loader

import (
	"context"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/jonathan/docmind/internal/types"
)

// Well-known declared types.
const (
	TypePDF         = "application/pdf"
	TypeCSV         = "text/csv"
	TypePlain       = "text/plain"
	TypeRTF         = "application/rtf"
	TypeSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Loader extracts documents from a file of one format.
type Loader interface {
	Load(ctx context.Context, path string) ([]types.SourceDocument, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) ([]types.SourceDocument, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string) ([]types.SourceDocument, error) {
	return f(ctx, path)
}

// Source is either a FileSource or a TextSource.
type Source interface {
	isSource()
}

// FileSource is a file on disk with the MIME type the caller declared for it.
type FileSource struct {
	Path         string
	DeclaredType string
}

// TextSource is a pre-assembled text body, such as a crawled website corpus.
type TextSource struct {
	Content  string
	Metadata map[string]any
}

func (FileSource) isSource() {}
func (TextSource) isSource() {}

// Registry is a lookup table from normalized MIME type to Loader.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Default returns a registry with the PDF, CSV and text loaders registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(TypePDF, PDFLoader{})
	r.Register(TypeCSV, CSVLoader{})
	r.Register(TypePlain, TextLoader{})
	r.Register(TypeRTF, TextLoader{})
	return r
}

// WithSpreadsheets registers the xlsx loader and returns r.
func (r *Registry) WithSpreadsheets() *Registry {
	r.Register(TypeSpreadsheet, SpreadsheetLoader{})
	return r
}

// Register binds a loader to a MIME type, replacing any previous binding.
func (r *Registry) Register(mimeType string, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[NormalizeType(mimeType)] = l
}

// Lookup returns the loader for a declared type.
func (r *Registry) Lookup(declaredType string) (Loader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[NormalizeType(declaredType)]
	if !ok {
		return nil, &UnsupportedFormatError{Type: declaredType, Supported: r.supported()}
	}
	return l, nil
}

// Supported lists the registered types in sorted order.
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.supported()
}

func (r *Registry) supported() []string {
	out := make([]string, 0, len(r.loaders))
	for t := range r.loaders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Load produces the documents of a source. A TextSource always yields exactly one
// document holding its content verbatim; a FileSource is dispatched by declared type.
func (r *Registry) Load(ctx context.Context, src Source) ([]types.SourceDocument, error) {
	switch s := src.(type) {
	case TextSource:
		return []types.SourceDocument{{Content: s.Content, Metadata: copyMetadata(s.Metadata)}}, nil
	case *TextSource:
		return r.Load(ctx, *s)
	case FileSource:
		l, err := r.Lookup(s.DeclaredType)
		if err != nil {
			return nil, err
		}
		return l.Load(ctx, s.Path)
	case *FileSource:
		return r.Load(ctx, *s)
	default:
		return nil, &UnsupportedFormatError{Type: "unknown source"}
	}
}

// NormalizeType lowercases a MIME type and strips its parameters.
func NormalizeType(declaredType string) string {
	if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(declaredType))
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
