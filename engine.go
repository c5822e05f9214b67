package loreforge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SourceIngestor turns a source's text into embedded chunks. Implemented by
// ingest.Ingestor; declared here so the engine does not depend on the ingest
// package.
type SourceIngestor interface {
	// IngestSource chunks and embeds the source's text and persists the
	// surviving chunks. Returns the number of chunks stored.
	IngestSource(ctx context.Context, src Source) (int, error)
}

// IngestQueue accepts sources for background ingestion. Enqueue reports
// false when the queue is full or closed; the caller then falls back to
// inline ingestion or leaves the source for a later reconcile pass.
type IngestQueue interface {
	Enqueue(src Source) bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithContextCache sets the context cache manager. Without one the engine
// always sends source material inline.
func WithContextCache(c ContextCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithIngestor sets the synchronous ingestor used for inline ingestion and
// reconciliation.
func WithIngestor(in SourceIngestor) EngineOption {
	return func(e *Engine) { e.ingestor = in }
}

// WithIngestQueue sets the background ingestion queue. Without one every
// ingest runs inline.
func WithIngestQueue(q IngestQueue) EngineOption {
	return func(e *Engine) { e.queue = q }
}

// WithFileStore sets the backing-file remover used during campaign deletion.
func WithFileStore(fs FileStore) EngineOption {
	return func(e *Engine) { e.files = fs }
}

// WithTopK sets how many chunks retrieval feeds into the prompt.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithTracer sets the tracer for engine operations.
func WithTracer(t Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Engine ties the pieces together: it owns retrieval, prompt assembly,
// versioned saves, cache warm-up, and campaign lifecycle. One Engine serves
// all campaigns.
type Engine struct {
	store     Store
	provider  Provider
	embedder  EmbeddingProvider
	retriever *Retriever
	versions  *VersionStore
	lifecycle *Lifecycle
	cache     ContextCache
	ingestor  SourceIngestor
	queue     IngestQueue
	files     FileStore
	logger    *slog.Logger
	tracer    Tracer
	topK      int
}

// NewEngine builds an Engine around a store, a generation provider, and an
// embedding provider. The retriever, version store, and lifecycle manager
// are constructed internally; the cache, ingestor, and queue are optional.
func NewEngine(store Store, provider Provider, embedder EmbeddingProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		provider: provider,
		embedder: embedder,
		logger:   nopLogger,
		tracer:   NopTracer(),
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retriever = NewRetriever(store, RetrieverLogger(e.logger))
	e.versions = NewVersionStore(store)
	lcOpts := []LifecycleOption{LifecycleLogger(e.logger)}
	if e.files != nil {
		lcOpts = append(lcOpts, LifecycleFiles(e.files))
	}
	e.lifecycle = NewLifecycle(store, lcOpts...)
	return e
}

// Versions exposes the version store for direct history access.
func (e *Engine) Versions() *VersionStore { return e.versions }

// Retriever exposes the retriever for direct scored queries.
func (e *Engine) Retriever() *Retriever { return e.retriever }

// Close releases the engine's background resources. The store is owned by
// the caller and is not closed here.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// --- Campaigns ---

// CreateCampaign creates a campaign record.
func (e *Engine) CreateCampaign(ctx context.Context, name, setting string) (Campaign, error) {
	c := Campaign{
		ID:        NewID(),
		Name:      name,
		Setting:   setting,
		CreatedAt: NowUnix(),
	}
	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	e.logger.Debug("campaign created", "id", c.ID, "name", name)
	return c, nil
}

// DeleteCampaign removes the campaign and everything it owns. Missing
// campaigns are ignored; repeating the call is safe.
func (e *Engine) DeleteCampaign(ctx context.Context, campaignID string) error {
	return e.lifecycle.DeleteCampaign(ctx, campaignID)
}

// --- Sources and ingestion ---

// AddSource registers extracted source material under a campaign (or, with
// an empty campaignID, in the global library) and schedules embedding.
func (e *Engine) AddSource(ctx context.Context, src Source) (Source, error) {
	if src.ID == "" {
		src.ID = NewID()
	}
	if src.CreatedAt == 0 {
		src.CreatedAt = NowUnix()
	}
	if err := e.store.CreateSource(ctx, src); err != nil {
		return Source{}, fmt.Errorf("create source: %w", err)
	}
	if !src.Global() {
		e.scheduleIngest(ctx, src)
	}
	return src, nil
}

// AssignGlobalSource copies a library source into a campaign and schedules
// embedding of the copy. Returns ErrConflict when the campaign already has
// a source with the same handle.
func (e *Engine) AssignGlobalSource(ctx context.Context, campaignID, globalID string) (Source, error) {
	global, err := e.store.GetSource(ctx, globalID)
	if err != nil {
		return Source{}, fmt.Errorf("load global source: %w", err)
	}
	if !global.Global() {
		return Source{}, &ErrConflict{Kind: "source", Detail: "source is not global"}
	}
	assigned, err := e.store.SourceAssigned(ctx, campaignID, global.Handle)
	if err != nil {
		return Source{}, fmt.Errorf("check assignment: %w", err)
	}
	if assigned {
		return Source{}, &ErrConflict{Kind: "source", Detail: "source already assigned to this campaign"}
	}

	copySrc := Source{
		ID:         NewID(),
		CampaignID: campaignID,
		Name:       global.Name,
		Text:       global.Text,
		Handle:     global.Handle,
		MimeType:   global.MimeType,
		FilePath:   global.FilePath,
		CreatedAt:  NowUnix(),
	}
	if err := e.store.CreateSource(ctx, copySrc); err != nil {
		return Source{}, fmt.Errorf("copy source: %w", err)
	}
	e.logger.Debug("global source assigned", "campaign", campaignID, "source", copySrc.ID, "handle", copySrc.Handle)
	e.scheduleIngest(ctx, copySrc)
	return copySrc, nil
}

// scheduleIngest hands the source to the background queue, falling back to
// inline ingestion when no queue is configured or the queue is full.
// Ingestion failures are logged, not surfaced: the source stays registered
// and ReconcileEmbeddings picks it up later.
func (e *Engine) scheduleIngest(ctx context.Context, src Source) {
	if e.queue != nil && e.queue.Enqueue(src) {
		return
	}
	if e.ingestor == nil {
		return
	}
	if _, err := e.ingestor.IngestSource(ctx, src); err != nil {
		e.logger.Warn("inline ingest failed", "source", src.ID, "error", err)
	}
}

// ReconcileEmbeddings re-ingests every source that has no chunks. Sources
// whose ingestion previously failed or was interrupted get a second chance;
// sources that still fail are left for the next pass. Returns the number of
// sources successfully backfilled.
func (e *Engine) ReconcileEmbeddings(ctx context.Context) (int, error) {
	if e.ingestor == nil {
		return 0, fmt.Errorf("reconcile embeddings: no ingestor configured")
	}
	missing, err := e.store.ListUnembeddedSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unembedded sources: %w", err)
	}
	done := 0
	for _, src := range missing {
		if src.Text == "" {
			continue
		}
		n, err := e.ingestor.IngestSource(ctx, src)
		if err != nil {
			e.logger.Warn("reconcile ingest failed", "source", src.ID, "error", err)
			continue
		}
		if n > 0 {
			done++
		}
	}
	if len(missing) > 0 {
		e.logger.Info("embedding reconcile pass", "candidates", len(missing), "backfilled", done)
	}
	return done, nil
}

// --- Retrieval and generation ---

// RetrieveContext embeds the query and returns the top-k most similar chunk
// texts scoped to the campaign. k <= 0 uses the engine default.
func (e *Engine) RetrieveContext(ctx context.Context, campaignID, query string, k int) ([]string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.retrieve")
	defer span.End()
	if k <= 0 {
		k = e.topK
	}
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	texts, err := e.retriever.Retrieve(ctx, campaignID, vecs[0], k)
	if err != nil {
		return nil, err
	}
	span.SetAttr(IntAttr("retrieved", len(texts)))
	return texts, nil
}

// Chat answers a lore question for a campaign. The prompt combines the
// campaign's retrieved source excerpts, the live document, and the user
// message. When a warm context cache covers the campaign's sources the
// request references it instead of carrying the source text inline.
//
// Retrieval and cache failures degrade to a less-informed prompt; only a
// generation failure is returned.
func (e *Engine) Chat(ctx context.Context, campaignID, docContent, message string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.chat")
	defer span.End()
	start := time.Now()

	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return "", fmt.Errorf("load campaign: %w", err)
	}

	excerpts, err := e.RetrieveContext(ctx, campaignID, message, e.topK)
	if err != nil {
		e.logger.Warn("retrieval unavailable, answering without excerpts", "campaign", campaignID, "error", err)
		excerpts = nil
	}

	system := chatSystemPrompt(campaign)
	req := GenerateRequest{
		Parts: []PromptPart{SystemPart(system)},
	}

	handle, cached := e.warmCache(ctx, campaignID, system)
	if cached {
		req.CacheHandle = handle
		span.SetAttr(BoolAttr("cache_hit", true))
	}

	var b strings.Builder
	if len(excerpts) > 0 {
		b.WriteString("Relevant excerpts from the campaign's source material:\n\n")
		for i, ex := range excerpts {
			fmt.Fprintf(&b, "--- Excerpt %d ---\n%s\n\n", i+1, ex)
		}
	} else if !cached {
		// No excerpts and no cache: fall back to raw source text so the
		// model still sees the campaign's material.
		if inline := e.inlineSources(ctx, campaignID); inline != "" {
			b.WriteString("Campaign source material:\n\n")
			b.WriteString(inline)
			b.WriteString("\n\n")
		}
	}
	if docContent != "" {
		b.WriteString("--- Current document ---\n")
		b.WriteString(docContent)
		b.WriteString("\n\n")
	}
	b.WriteString(message)
	req.Parts = append(req.Parts, UserPart(b.String()))

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	e.logger.Debug("chat turn complete",
		"campaign", campaignID,
		"excerpts", len(excerpts),
		"cached", cached,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", time.Since(start))
	return resp.Content, nil
}

// Canonize splices a lore selection into an existing document and returns
// the rewritten markdown. The document in the store is not touched; the
// caller decides whether to save the result.
func (e *Engine) Canonize(ctx context.Context, docContent, selection, fullResponse string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.canonize")
	defer span.End()

	prompt := canonizePrompt(docContent, selection, fullResponse)
	resp, err := e.provider.Generate(ctx, GenerateRequest{
		Parts: []PromptPart{UserPart(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("canonize: %w", err)
	}
	return stripMarkdownFence(resp.Content), nil
}

// warmCache asks the cache manager for a handle covering the campaign's
// current source set. Any failure along the way means "no cache".
func (e *Engine) warmCache(ctx context.Context, campaignID, systemInstruction string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	sources, err := e.store.ListSources(ctx, campaignID)
	if err != nil {
		e.logger.Warn("listing sources for cache failed", "campaign", campaignID, "error", err)
		return "", false
	}
	var handles []string
	for _, s := range sources {
		if s.Handle != "" {
			handles = append(handles, s.Handle)
		}
	}
	if len(handles) == 0 {
		return "", false
	}
	return e.cache.GetOrCreate(ctx, campaignID, handles, systemInstruction)
}

// inlineSources concatenates the campaign's raw source text for uncached
// prompts. Oversized material is truncated per source rather than dropped.
func (e *Engine) inlineSources(ctx context.Context, campaignID string) string {
	sources, err := e.store.ListSources(ctx, campaignID)
	if err != nil {
		e.logger.Warn("listing sources for inline prompt failed", "campaign", campaignID, "error", err)
		return ""
	}
	const perSourceLimit = 30000
	var b strings.Builder
	for _, s := range sources {
		if s.Text == "" {
			continue
		}
		text := s.Text
		if len(text) > perSourceLimit {
			text = text[:perSourceLimit]
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", s.Name, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- Documents ---

// CreateDocument creates a lore document at version 1.
func (e *Engine) CreateDocument(ctx context.Context, campaignID, title, content string) (Document, error) {
	d := Document{
		ID:         NewID(),
		CampaignID: campaignID,
		Title:      title,
		Content:    content,
		Version:    1,
		CreatedAt:  NowUnix(),
	}
	if err := e.store.CreateDocument(ctx, d); err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	return d, nil
}

// SaveDocument persists new content for a document, snapshotting the
// previous content into version history first. Saves are excluded by an
// in-flight deletion of the owning campaign.
func (e *Engine) SaveDocument(ctx context.Context, documentID, content string) (Document, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}
	var saved Document
	err = e.lifecycle.Guard(doc.CampaignID, func() error {
		var saveErr error
		saved, saveErr = e.versions.Save(ctx, documentID, content)
		return saveErr
	})
	if err != nil {
		return Document{}, err
	}
	return saved, nil
}

// RestoreVersion returns the content of a historical snapshot. Nothing is
// written; saving the returned content is a separate, explicit step.
func (e *Engine) RestoreVersion(ctx context.Context, historyID string) (string, error) {
	return e.versions.Restore(ctx, historyID)
}

// --- Prompts ---

func chatSystemPrompt(c Campaign) string {
	var b strings.Builder
	b.WriteString("You are a campaign lorekeeper and worldbuilding assistant for the campaign ")
	fmt.Fprintf(&b, "%q", c.Name)
	if c.Setting != "" {
		fmt.Fprintf(&b, ", set in %s", c.Setting)
	}
	b.WriteString(`.
Answer from the campaign's source material when it is provided; stay
consistent with established lore and flag contradictions instead of
inventing replacements. When the material is silent you may extrapolate,
but say that you are doing so. Format answers as markdown.`)
	return b.String()
}

func canonizePrompt(docContent, selection, fullResponse string) string {
	return fmt.Sprintf(`You are a professional campaign-book editor.
You have access to custom Homebrewery-style markdown blocks for formatting:
- Monster/NPC stat block: {{monster,frame ... }}
- Note box: {{note ... }}
- Descriptive box: {{descriptive ... }}
- Tables: standard markdown tables.

Your task is to seamlessly integrate a specific "Lore Selection" into an existing document.

--- EXISTING DOCUMENT ---
%s

--- LORE SELECTION TO INTEGRATE ---
%s

--- CONTEXT (full brainstorming response) ---
%s

INSTRUCTIONS:
1. Integrate the Lore Selection into the Existing Document.
2. You may APPEND it to the end OR SPLICE it into a relevant section if one exists.
3. Make the transition natural, in the register of a professional sourcebook.
4. Remove redundant headers or introductory phrases.
5. DO NOT change the existing lore; only add the new selection and fix the flow.
6. Return ONLY the full, updated markdown content of the document. No explanations.`,
		docContent, selection, fullResponse)
}

// stripMarkdownFence removes a surrounding ```markdown code fence that
// models sometimes wrap whole-document responses in.
func stripMarkdownFence(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, prefix := range []string{"```markdown\n", "```md\n", "```\n"} {
		if strings.HasPrefix(trimmed, prefix) {
			trimmed = strings.TrimPrefix(trimmed, prefix)
			trimmed = strings.TrimSuffix(strings.TrimRight(trimmed, "\n"), "```")
			return strings.TrimRight(trimmed, "\n")
		}
	}
	return s
}
