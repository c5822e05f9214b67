package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	loreforge "github.com/loreforge/loreforge"
)

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunker replaces the default window chunker.
func WithChunker(c Chunker) Option {
	return func(ing *Ingestor) {
		if c != nil {
			ing.chunker = c
		}
	}
}

// WithLogger sets the ingestor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) {
		if l != nil {
			ing.logger = l
		}
	}
}

// WithEmbedDelay sets the pause between consecutive chunk embeddings.
// Spreads embedding calls out so large uploads don't burn through the
// provider's per-minute quota in one burst.
func WithEmbedDelay(d time.Duration) Option {
	return func(ing *Ingestor) { ing.embedDelay = d }
}

// Ingestor chunks and embeds a source's text and persists the result.
// Chunks whose embedding call fails are skipped, not fatal: a partially
// embedded source still retrieves, and a fully failed one is picked up by
// the next reconcile pass.
type Ingestor struct {
	store      loreforge.Store
	embedding  loreforge.EmbeddingProvider
	chunker    Chunker
	logger     *slog.Logger
	embedDelay time.Duration
}

// New creates an Ingestor with the default window chunker.
func New(store loreforge.Store, emb loreforge.EmbeddingProvider, opts ...Option) *Ingestor {
	chunker, err := NewWindowChunker()
	if err != nil {
		// Defaults are statically valid.
		panic(err)
	}
	ing := &Ingestor{
		store:      store,
		embedding:  emb,
		chunker:    chunker,
		logger:     nopLogger,
		embedDelay: 50 * time.Millisecond,
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// IngestSource chunks src.Text, embeds each chunk, and replaces the
// source's stored chunks with the survivors. Returns the number of chunks
// persisted. An error is returned only when nothing could be embedded at
// all or the store write fails; per-chunk failures are logged and skipped.
func (ing *Ingestor) IngestSource(ctx context.Context, src loreforge.Source) (int, error) {
	start := time.Now()
	texts := ing.chunker.Chunk(src.Text)
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]loreforge.Chunk, 0, len(texts))
	failed := 0
	for i, t := range texts {
		if i > 0 && ing.embedDelay > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(ing.embedDelay):
			}
		}
		vecs, err := ing.embedding.Embed(ctx, []string{t})
		if err != nil || len(vecs) == 0 {
			failed++
			ing.logger.Warn("chunk embedding failed, skipping",
				"source", src.ID, "chunk", i, "error", err)
			continue
		}
		chunks = append(chunks, loreforge.Chunk{
			ID:         loreforge.NewID(),
			SourceID:   src.ID,
			Content:    t,
			ChunkIndex: i,
			Embedding:  vecs[0],
			CreatedAt:  loreforge.NowUnix(),
		})
	}

	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingest source %s: all %d chunks failed to embed", src.ID, len(texts))
	}
	if err := ing.store.ReplaceChunks(ctx, src.ID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	ing.logger.Debug("source ingested",
		"source", src.ID,
		"chunks", len(chunks),
		"skipped", failed,
		"duration", time.Since(start))
	return len(chunks), nil
}

// ExtractFile converts an uploaded file to plain text, picking the
// extractor from the filename extension.
func ExtractFile(content []byte, filename string) (string, ContentType, error) {
	ct := ContentTypeFromExtension(filepath.Ext(filename))
	text, err := ExtractorFor(ct).Extract(content)
	if err != nil {
		return "", ct, fmt.Errorf("extract %s: %w", ct, err)
	}
	return text, ct, nil
}

var _ loreforge.SourceIngestor = (*Ingestor)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
