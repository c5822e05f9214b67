// Package loreforge is a campaign-lore authoring backend built around a
// retrieval-augmented context engine.
//
// It provides modular, interface-driven building blocks: a windowed
// chunking and embedding pipeline, cosine-similarity retrieval over
// campaign-scoped sources, a TTL-bound remote context-cache manager, a
// bounded per-document version store, and transactional campaign
// lifecycle management.
//
// # Quick Start
//
// Wire an Engine from a store and Gemini providers:
//
//	provider := gemini.New(apiKey, model)
//	embedding := gemini.NewEmbedding(apiKey, "gemini-embedding-001", 1536)
//	store := sqlite.New("loreforge.db")
//
//	ingestor := ingest.New(store, embedding)
//	queue := ingest.NewQueue(ingestor)
//	cache := loreforge.NewCacheManager(gemini.NewCache(apiKey, model))
//
//	engine := loreforge.NewEngine(store, provider, embedding,
//		loreforge.WithIngestor(ingestor),
//		loreforge.WithIngestQueue(queue),
//		loreforge.WithContextCache(cache),
//	)
//
//	answer, err := engine.Chat(ctx, campaignID, docContent, "Who rules Thornhold?")
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Store] — persistence for campaigns, documents, versions, sources, chunks
//   - [Provider] — text generation backend
//   - [EmbeddingProvider] — text-to-vector embedding
//   - [CacheService] — remote context-cache CRUD
//   - [ContextCache] — local cache bookkeeping over a CacheService
//   - [SourceIngestor], [IngestQueue] — chunk-and-embed pipeline hooks
//   - [FileStore] — backing-file cleanup during deletion
//
// Subpackages supply the implementations: provider/gemini, store/sqlite,
// store/postgres, ingest, observer, and export.
package loreforge
