// Package indexer loads a content source, embeds its documents and writes them
// into a vector store collection.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/docmind/internal/embedding"
	"github.com/jonathan/docmind/internal/loader"
	"github.com/jonathan/docmind/internal/types"
	"github.com/jonathan/docmind/internal/vectorstore"
)

// Default batching parameters.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 2
)

// chunkNamespace scopes content-derived chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c1c5e-3b7a-4bb4-9a55-2a3c0f9d8e11")

// Options tunes indexing.
type Options struct {
	// ChunkSize splits documents longer than this many runes. Zero disables splitting.
	ChunkSize int
	// ChunkOverlap is the number of runes shared by consecutive chunks.
	ChunkOverlap int
	// BatchSize is the number of texts per embedding request.
	BatchSize int
	// Concurrency bounds in-flight embedding requests.
	Concurrency int
	// Deduplicate derives chunk IDs from content so identical chunks overwrite each other.
	Deduplicate bool
}

// Handle describes a completed ingestion.
type Handle struct {
	Collection string
	Chunks     int
	IDs        []string
}

// NoContentError is returned when a source yields no indexable text.
type NoContentError struct {
	Source string
}

func (e *NoContentError) Error() string {
	return fmt.Sprintf("no indexable content in %s", e.Source)
}

// Indexer runs load, embed and upsert for one source at a time. It holds no
// per-call state and may be shared across goroutines.
type Indexer struct {
	registry *loader.Registry
	embedder embedding.Embedder
	store    vectorstore.Store
	opts     Options
}

// New creates an Indexer.
func New(registry *loader.Registry, embedder embedding.Embedder, store vectorstore.Store, opts Options) *Indexer {
	if registry == nil {
		registry = loader.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ChunkOverlap < 0 || (opts.ChunkSize > 0 && opts.ChunkOverlap >= opts.ChunkSize) {
		opts.ChunkOverlap = 0
	}
	return &Indexer{registry: registry, embedder: embedder, store: store, opts: opts}
}

// Index ingests one source. For a file source with a supported type the file is
// removed once indexing finishes, whatever the outcome; an unsupported type
// fails before the file is touched.
func (ix *Indexer) Index(ctx context.Context, src loader.Source) (*Handle, error) {
	label := "text"
	if fs, ok := asFileSource(src); ok {
		if _, err := ix.registry.Lookup(fs.DeclaredType); err != nil {
			return nil, err
		}
		label = fs.Path
		defer removeTemp(fs.Path)
	}

	docs, err := ix.registry.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	chunks := ix.split(docs)
	if len(chunks) == 0 {
		return nil, &NoContentError{Source: label}
	}

	vectors, err := ix.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := ix.store.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	points := make([]vectorstore.Point, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = ix.pointID(c)
		points[i] = vectorstore.Point{
			ID:       ids[i],
			Vector:   vectors[i],
			Content:  c.Content,
			Metadata: c.Metadata,
		}
	}
	if err := ix.store.Upsert(ctx, points); err != nil {
		return nil, err
	}

	log.Printf("[index] %s: %d chunks into %q via %s", label, len(chunks), ix.store.Collection(), ix.embedder.Name())
	return &Handle{Collection: ix.store.Collection(), Chunks: len(chunks), IDs: ids}, nil
}

func asFileSource(src loader.Source) (loader.FileSource, bool) {
	switch s := src.(type) {
	case loader.FileSource:
		return s, true
	case *loader.FileSource:
		return *s, true
	}
	return loader.FileSource{}, false
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[index] failed to remove %s: %v", path, err)
	}
}

// split drops blank documents, applies the rune window and stamps each chunk
// with a content hash. Metadata maps are copied, never shared with the input.
func (ix *Indexer) split(docs []types.SourceDocument) []types.SourceDocument {
	out := make([]types.SourceDocument, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		pieces := SplitText(d.Content, ix.opts.ChunkSize, ix.opts.ChunkOverlap)
		for i, piece := range pieces {
			meta := make(map[string]any, len(d.Metadata)+2)
			for k, v := range d.Metadata {
				meta[k] = v
			}
			meta["content_hash"] = contentHash(piece)
			if len(pieces) > 1 {
				meta["chunk"] = i
			}
			out = append(out, types.SourceDocument{Content: piece, Metadata: meta})
		}
	}
	return out
}

// embed computes vectors in batches with bounded concurrency. Any batch failure aborts.
func (ix *Indexer) embed(ctx context.Context, chunks []types.SourceDocument) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)
	for start := 0; start < len(chunks); start += ix.opts.BatchSize {
		end := min(start+ix.opts.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Content)
			}
			batch, err := ix.embedder.Embed(gCtx, texts)
			if err != nil {
				return err
			}
			if len(batch) != len(texts) {
				return &embedding.ProviderError{
					Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(batch)),
				}
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, &embedding.ProviderError{Message: fmt.Sprintf("inconsistent embedding dimension at chunk %d", i)}
		}
	}
	return vectors, nil
}

func (ix *Indexer) pointID(c types.SourceDocument) string {
	if ix.opts.Deduplicate {
		hash, _ := c.Metadata["content_hash"].(string)
		return uuid.NewSHA1(chunkNamespace, []byte(hash)).String()
	}
	return uuid.NewString()
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SplitText cuts text into windows of at most size runes, consecutive windows
// sharing overlap runes. Windows prefer to end at whitespace. A size of zero or
// less returns the text unchanged as one window.
func SplitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := min(start+size, len(runes))
		if end < len(runes) {
			// Back off to the last whitespace in the second half of the window.
			for cut := end; cut > start+size/2; cut-- {
				if isSpace(runes[cut-1]) {
					end = cut
					break
				}
			}
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
