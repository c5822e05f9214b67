package loreforge

// --- Domain types (database records) ---

// Campaign is the top-level unit of ownership. It owns its documents,
// their version history, and its campaign-scoped sources.
type Campaign struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Setting   string `json:"setting"`
	BrainID   string `json:"brain_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Document holds the current working content of a lore document.
// Version starts at 1 and increments on every save.
type Document struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Version    int    `json:"version"`
	CreatedAt  int64  `json:"created_at"`
}

// VersionEntry is an immutable snapshot of a document's content as it was
// before a save. At most MaxVersionEntries are retained per document.
type VersionEntry struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Version    int    `json:"version"`
	CreatedAt  int64  `json:"created_at"`
}

// MaxVersionEntries bounds per-document history depth. When a save would
// exceed it, the oldest entry is evicted first.
const MaxVersionEntries = 20

// Source is uploaded reference material. A Source with CampaignID == "" is
// global (owned by the library); assigning it to a campaign creates an
// independent campaign-scoped copy sharing the same Handle.
type Source struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id,omitempty"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	Handle     string `json:"handle"`
	MimeType   string `json:"mime_type"`
	FilePath   string `json:"file_path,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// Global reports whether the source belongs to the shared library rather
// than a single campaign.
func (s Source) Global() bool { return s.CampaignID == "" }

// Chunk is a bounded slice of a source's text, the unit of embedding and
// retrieval. Chunks live and die with their Source.
type Chunk struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
	CreatedAt  int64     `json:"created_at"`
}

// ScoredChunk pairs a chunk with its similarity score against a query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// AuditEntry records a destructive operation for later inspection.
type AuditEntry struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	CreatedAt int64  `json:"created_at"`
}

// --- Generation protocol types ---

// PromptPart is one section of an assembled prompt, in order.
type PromptPart struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// GenerateRequest carries the assembled prompt and, when a warm context
// cache is available, the provider-side handle to it.
type GenerateRequest struct {
	Parts []PromptPart `json:"parts"`

	// CacheHandle references a provider-side pre-loaded context
	// (e.g. "cachedContents/abc123"). Empty means no cache: the full
	// source material travels inline in Parts.
	CacheHandle string `json:"cache_handle,omitempty"`
}

// GenerateResponse is the model's reply plus token accounting.
type GenerateResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage reports token counts for a single generation call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// SystemPart creates a system-role prompt part.
func SystemPart(text string) PromptPart {
	return PromptPart{Role: "system", Content: text}
}

// UserPart creates a user-role prompt part.
func UserPart(text string) PromptPart {
	return PromptPart{Role: "user", Content: text}
}
