package loreforge

import "context"

// CascadeResult summarizes a campaign cascade deletion. FilePaths lists the
// backing files of the removed sources so the caller can clean them up
// best-effort after the transaction commits.
type CascadeResult struct {
	Deleted   bool
	Campaign  Campaign
	Sources   int
	Chunks    int
	Documents int
	Versions  int
	FilePaths []string
}

// Store abstracts persistence for campaigns, documents, version history,
// sources, chunks, and the audit log. Implementations must make the
// multi-row operations (SaveDocumentVersion, the cascading deletes)
// atomic: either every row change lands or none does.
type Store interface {
	// --- Campaigns ---
	CreateCampaign(ctx context.Context, c Campaign) error
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	UpdateCampaign(ctx context.Context, c Campaign) error

	// DeleteCampaignCascade removes the campaign and everything under it
	// (chunks, sources, version entries, documents, the campaign row) and
	// appends an audit entry, all in one transaction. A missing campaign is
	// not an error: the result has Deleted == false and no audit entry is
	// written.
	DeleteCampaignCascade(ctx context.Context, id string) (CascadeResult, error)

	// --- Documents ---
	CreateDocument(ctx context.Context, d Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context, campaignID string) ([]Document, error)
	RenameDocument(ctx context.Context, id, title string) error

	// DeleteDocument removes the document and its version entries together.
	DeleteDocument(ctx context.Context, id string) error

	// SaveDocumentVersion snapshots the document's current content into a
	// version entry (evicting the oldest entry when the document already
	// holds MaxVersionEntries), then overwrites the content and increments
	// the version, atomically. Returns the updated document.
	SaveDocumentVersion(ctx context.Context, documentID, newContent string) (Document, error)

	// --- Version history ---
	ListVersions(ctx context.Context, documentID string) ([]VersionEntry, error)
	GetVersion(ctx context.Context, historyID string) (VersionEntry, error)

	// --- Sources ---
	CreateSource(ctx context.Context, s Source) error
	GetSource(ctx context.Context, id string) (Source, error)
	ListSources(ctx context.Context, campaignID string) ([]Source, error)
	ListGlobalSources(ctx context.Context) ([]Source, error)

	// SourceAssigned reports whether the campaign already has a source with
	// the given provider handle.
	SourceAssigned(ctx context.Context, campaignID, handle string) (bool, error)

	// DeleteSource removes a source and its chunks in one transaction.
	DeleteSource(ctx context.Context, id string) error

	// DeleteGlobalSource removes a library source, any campaign-scoped
	// copies referencing its handle, and all their chunks, in one
	// transaction.
	DeleteGlobalSource(ctx context.Context, id string) error

	// ListUnembeddedSources returns sources that have no chunks, the input
	// to an embedding backfill pass.
	ListUnembeddedSources(ctx context.Context) ([]Source, error)

	// --- Chunks ---

	// ReplaceChunks removes any existing chunks for the source and inserts
	// the given ones in a single transaction.
	ReplaceChunks(ctx context.Context, sourceID string, chunks []Chunk) error

	// GetChunksByCampaign returns every chunk belonging to any source scoped
	// to the campaign, in insertion order.
	GetChunksByCampaign(ctx context.Context, campaignID string) ([]Chunk, error)

	// --- Audit ---
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	// --- Lifecycle ---
	Init(ctx context.Context) error
	Close() error
}
