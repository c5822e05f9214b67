package loreforge

import (
	"context"
	"time"
)

// Provider abstracts the generative model backend.
type Provider interface {
	// Generate sends an assembled prompt and returns the complete response.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	// Name returns the provider name (e.g. "gemini").
	Name() string
}

// EmbeddingProvider abstracts text embedding. Calls fail independently;
// ingestion tolerates per-chunk failures.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// CacheService is the provider-side context-cache surface. Both calls are
// best-effort from the engine's point of view: failures degrade to sending
// source material inline and never reach the end user.
type CacheService interface {
	// CreateCachedContent pre-loads the given source handles provider-side,
	// together with the system instruction the cached turns will run under,
	// and returns the cache handle. The provider rejects a per-request system
	// instruction once a cached content is referenced, so it has to be part
	// of the cache itself.
	CreateCachedContent(ctx context.Context, sourceHandles []string, systemInstruction string, ttl time.Duration) (string, error)
	// DeleteCachedContent drops a provider-side cache.
	DeleteCachedContent(ctx context.Context, handle string) error
}

// FileStore abstracts removal of uploaded backing files. Remove is
// best-effort during cascading deletes; a missing file is not an error
// worth failing for.
type FileStore interface {
	Remove(path string) error
}
