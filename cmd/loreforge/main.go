package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	loreforge "github.com/loreforge/loreforge"
	"github.com/loreforge/loreforge/ingest"
	"github.com/loreforge/loreforge/internal/config"
	"github.com/loreforge/loreforge/observer"
	"github.com/loreforge/loreforge/provider/gemini"
	"github.com/loreforge/loreforge/store/postgres"
	"github.com/loreforge/loreforge/store/sqlite"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg := config.Load(os.Getenv("LOREFORGE_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// 2. Observability (optional)
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx, pricing)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	// 3. Store
	var store loreforge.Store
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			log.Fatalf("postgres pool: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	default:
		store = sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
	}
	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}
	defer store.Close()

	// 4. Providers
	llm := loreforge.WithRetry(
		gemini.New(cfg.LLM.APIKey, cfg.LLM.Model),
		loreforge.RetryLogger(logger),
	)
	embedding := loreforge.WithEmbedRateLimit(
		loreforge.WithEmbeddingRetry(
			gemini.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions),
			loreforge.RetryLogger(logger),
		),
		loreforge.EmbedRPM(cfg.Embedding.RPM),
	)
	if inst != nil {
		llm = observer.WrapProvider(llm, cfg.LLM.Model, inst)
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
	}

	// 5. Context cache
	var cache loreforge.ContextCache
	if cfg.Cache.Enabled {
		cacheSvc := gemini.NewCache(cfg.LLM.APIKey, cfg.LLM.Model)
		mgr := loreforge.NewCacheManager(cacheSvc,
			loreforge.CacheTTL(time.Duration(cfg.Cache.TTLSeconds)*time.Second),
			loreforge.CacheLogger(logger),
		)
		if cfg.Cache.SweepSeconds > 0 {
			mgr.StartSweeper(time.Duration(cfg.Cache.SweepSeconds) * time.Second)
		}
		cache = mgr
		if inst != nil {
			cache = observer.WrapCache(mgr, inst)
		}
	}

	// 6. Ingestion
	chunker, err := ingest.NewWindowChunker(
		ingest.WithChunkSize(cfg.Ingest.ChunkSize),
		ingest.WithChunkOverlap(cfg.Ingest.ChunkOverlap),
	)
	if err != nil {
		log.Fatalf("chunker: %v", err)
	}
	ingestor := ingest.New(store, embedding,
		ingest.WithChunker(chunker),
		ingest.WithLogger(logger),
	)
	queue := ingest.NewQueue(ingestor,
		ingest.QueueWorkers(cfg.Ingest.Workers),
		ingest.QueueBuffer(cfg.Ingest.QueueSize),
		ingest.QueueLogger(logger),
	)
	defer queue.Close()

	// 7. Uploaded-file storage
	files, err := loreforge.NewDiskFileStore(cfg.Engine.UploadPath)
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}

	// 8. Engine
	opts := []loreforge.EngineOption{
		loreforge.WithLogger(logger),
		loreforge.WithIngestor(ingestor),
		loreforge.WithIngestQueue(queue),
		loreforge.WithFileStore(files),
		loreforge.WithTopK(cfg.Engine.TopK),
	}
	if cache != nil {
		opts = append(opts, loreforge.WithContextCache(cache))
	}
	if inst != nil {
		opts = append(opts, loreforge.WithTracer(observer.NewTracer()))
	}
	engine := loreforge.NewEngine(store, llm, embedding, opts...)
	defer engine.Close()

	// 9. Backfill any sources whose embedding never completed, then serve
	// until interrupted.
	if n, err := engine.ReconcileEmbeddings(ctx); err != nil {
		logger.Warn("embedding reconcile failed", "error", err)
	} else if n > 0 {
		logger.Info("backfilled embeddings", "sources", n)
	}

	logger.Info("loreforge running",
		"driver", cfg.Database.Driver,
		"model", cfg.LLM.Model,
		"cache", cfg.Cache.Enabled,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}
