package loreforge

import (
	"context"
	"sort"
	"sync"
)

// memStore is an in-memory Store for engine and lifecycle tests. It keeps
// the same semantics as the SQL stores (cascade counts, FIFO history
// eviction, handle-wide global deletes) without a database.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	documents map[string]Document
	history   map[string][]VersionEntry // documentID -> oldest first
	sources   map[string]Source
	chunks    map[string][]Chunk // sourceID -> chunks
	audit     []AuditEntry
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		campaigns: make(map[string]Campaign),
		documents: make(map[string]Document),
		history:   make(map[string][]VersionEntry),
		sources:   make(map[string]Source),
		chunks:    make(map[string][]Chunk),
	}
}

func (m *memStore) Init(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }

func (m *memStore) CreateCampaign(ctx context.Context, c Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return nil
}

func (m *memStore) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return Campaign{}, &ErrNotFound{Kind: "campaign", ID: id}
	}
	return c, nil
}

func (m *memStore) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Campaign
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateCampaign(ctx context.Context, c Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return &ErrNotFound{Kind: "campaign", ID: c.ID}
	}
	m.campaigns[c.ID] = c
	return nil
}

func (m *memStore) DeleteCampaignCascade(ctx context.Context, id string) (CascadeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return CascadeResult{Deleted: false}, nil
	}
	res := CascadeResult{Deleted: true, Campaign: c}
	for sid, s := range m.sources {
		if s.CampaignID != id {
			continue
		}
		if s.FilePath != "" {
			res.FilePaths = append(res.FilePaths, s.FilePath)
		}
		res.Chunks += len(m.chunks[sid])
		delete(m.chunks, sid)
		delete(m.sources, sid)
		res.Sources++
	}
	for did, d := range m.documents {
		if d.CampaignID != id {
			continue
		}
		res.Versions += len(m.history[did])
		delete(m.history, did)
		delete(m.documents, did)
		res.Documents++
	}
	delete(m.campaigns, id)
	m.audit = append(m.audit, AuditEntry{
		ID: NewID(), Action: "campaign_deleted", CreatedAt: NowUnix(),
	})
	return res, nil
}

func (m *memStore) CreateDocument(ctx context.Context, d Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = d
	return nil
}

func (m *memStore) GetDocument(ctx context.Context, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return Document{}, &ErrNotFound{Kind: "document", ID: id}
	}
	return d, nil
}

func (m *memStore) ListDocuments(ctx context.Context, campaignID string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Document
	for _, d := range m.documents {
		if d.CampaignID == campaignID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) RenameDocument(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return &ErrNotFound{Kind: "document", ID: id}
	}
	d.Title = title
	m.documents[id] = d
	return nil
}

func (m *memStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, id)
	delete(m.documents, id)
	return nil
}

func (m *memStore) SaveDocumentVersion(ctx context.Context, documentID, newContent string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok {
		return Document{}, &ErrNotFound{Kind: "document", ID: documentID}
	}
	h := m.history[documentID]
	if excess := len(h) - (MaxVersionEntries - 1); excess > 0 {
		h = h[excess:]
	}
	h = append(h, VersionEntry{
		ID: NewID(), DocumentID: documentID, Content: d.Content,
		Version: d.Version, CreatedAt: NowUnix(),
	})
	m.history[documentID] = h
	d.Content = newContent
	d.Version++
	m.documents[documentID] = d
	return d, nil
}

func (m *memStore) ListVersions(ctx context.Context, documentID string) ([]VersionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[documentID]
	out := make([]VersionEntry, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- { // newest first
		out = append(out, h[i])
	}
	return out, nil
}

func (m *memStore) GetVersion(ctx context.Context, historyID string) (VersionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entries := range m.history {
		for _, e := range entries {
			if e.ID == historyID {
				return e, nil
			}
		}
	}
	return VersionEntry{}, &ErrNotFound{Kind: "version", ID: historyID}
}

func (m *memStore) CreateSource(ctx context.Context, s Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[s.ID] = s
	return nil
}

func (m *memStore) GetSource(ctx context.Context, id string) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return Source{}, &ErrNotFound{Kind: "source", ID: id}
	}
	return s, nil
}

func (m *memStore) ListSources(ctx context.Context, campaignID string) ([]Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Source
	for _, s := range m.sources {
		if s.CampaignID == campaignID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListGlobalSources(ctx context.Context) ([]Source, error) {
	return m.ListSources(ctx, "")
}

func (m *memStore) SourceAssigned(ctx context.Context, campaignID, handle string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.CampaignID == campaignID && s.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteSource(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, id)
	delete(m.sources, id)
	return nil
}

func (m *memStore) DeleteGlobalSource(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok || !s.Global() {
		return &ErrNotFound{Kind: "source", ID: id}
	}
	if s.Handle == "" {
		delete(m.chunks, id)
		delete(m.sources, id)
		return nil
	}
	for sid, other := range m.sources {
		if other.Handle == s.Handle {
			delete(m.chunks, sid)
			delete(m.sources, sid)
		}
	}
	return nil
}

func (m *memStore) ListUnembeddedSources(ctx context.Context) ([]Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Source
	for _, s := range m.sources {
		if s.Text != "" && len(m.chunks[s.ID]) == 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ReplaceChunks(ctx context.Context, sourceID string, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[sourceID] = append([]Chunk(nil), chunks...)
	return nil
}

func (m *memStore) GetChunksByCampaign(ctx context.Context, campaignID string) ([]Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sources []Source
	for _, s := range m.sources {
		if s.CampaignID == campaignID {
			sources = append(sources, s)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	var out []Chunk
	for _, s := range sources {
		out = append(out, m.chunks[s.ID]...)
	}
	return out, nil
}

func (m *memStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *memStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]AuditEntry(nil), m.audit...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// fakeProvider records requests and replies from a fixed queue.
type fakeProvider struct {
	mu       sync.Mutex
	requests []GenerateRequest
	replies  []GenerateResponse
	errs     []error
	calls    int
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return GenerateResponse{}, f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return GenerateResponse{Content: "ok"}, nil
}

func (f *fakeProvider) lastRequest() GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakeEmbedder returns a fixed vector for any input, or fails.
type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
}

var _ EmbeddingProvider = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Name() string    { return "fake-embed" }
func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeCache hands out a fixed handle when warm.
type fakeCache struct {
	handle string
	warm   bool

	mu         sync.Mutex
	lastKey    string
	lastSystem string
	getCalls   int
	closeHits  int
}

var _ ContextCache = (*fakeCache)(nil)

func (f *fakeCache) GetOrCreate(ctx context.Context, campaignID string, handles []string, systemInstruction string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	f.lastKey = CacheKey(campaignID, handles)
	f.lastSystem = systemInstruction
	if !f.warm {
		return "", false
	}
	return f.handle, true
}

func (f *fakeCache) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeHits++
}

// fakeIngestor records the sources it was asked to ingest.
type fakeIngestor struct {
	mu      sync.Mutex
	ingests []Source
	n       int
	err     error
}

var _ SourceIngestor = (*fakeIngestor)(nil)

func (f *fakeIngestor) IngestSource(ctx context.Context, src Source) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests = append(f.ingests, src)
	return f.n, f.err
}

func (f *fakeIngestor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingests)
}

// fakeQueue accepts or rejects everything.
type fakeQueue struct {
	accept bool

	mu       sync.Mutex
	enqueued []Source
}

var _ IngestQueue = (*fakeQueue)(nil)

func (f *fakeQueue) Enqueue(src Source) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accept {
		f.enqueued = append(f.enqueued, src)
	}
	return f.accept
}
