// Package sqlite implements loreforge.Store using pure-Go SQLite.
// Zero CGO required. Embeddings are stored as JSON text and similarity
// search runs in-process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	loreforge "github.com/loreforge/loreforge"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation including timing and row counts.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store implements loreforge.Store backed by a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ loreforge.Store = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			setting TEXT NOT NULL DEFAULT '',
			brain_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_history (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			text_content TEXT NOT NULL DEFAULT '',
			handle TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Indexes on frequently queried columns.
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_documents_campaign ON documents(campaign_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_history_document ON document_history(document_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sources_campaign ON sources(campaign_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sources_handle ON sources(handle)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id)`)

	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Campaigns ---

func (s *Store) CreateCampaign(ctx context.Context, c loreforge.Campaign) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, setting, brain_id, session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Setting, c.BrainID, c.SessionID, c.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: create campaign failed", "id", c.ID, "error", err)
		return fmt.Errorf("create campaign: %w", err)
	}
	s.logger.Debug("sqlite: create campaign ok", "id", c.ID, "duration", time.Since(start))
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (loreforge.Campaign, error) {
	var c loreforge.Campaign
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, setting, brain_id, session_id, created_at FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Setting, &c.BrainID, &c.SessionID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return loreforge.Campaign{}, &loreforge.ErrNotFound{Kind: "campaign", ID: id}
	}
	if err != nil {
		return loreforge.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]loreforge.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, setting, brain_id, session_id, created_at
		 FROM campaigns ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []loreforge.Campaign
	for rows.Next() {
		var c loreforge.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Setting, &c.BrainID, &c.SessionID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *Store) UpdateCampaign(ctx context.Context, c loreforge.Campaign) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET name = ?, setting = ?, brain_id = ?, session_id = ? WHERE id = ?`,
		c.Name, c.Setting, c.BrainID, c.SessionID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &loreforge.ErrNotFound{Kind: "campaign", ID: c.ID}
	}
	return nil
}

// DeleteCampaignCascade removes the campaign and everything under it in one
// transaction, recording an audit entry. A missing campaign commits nothing
// and writes no audit row.
func (s *Store) DeleteCampaignCascade(ctx context.Context, id string) (loreforge.CascadeResult, error) {
	start := time.Now()
	s.logger.Debug("sqlite: cascade delete", "campaign", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var res loreforge.CascadeResult
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, setting, brain_id, session_id, created_at FROM campaigns WHERE id = ?`, id,
	).Scan(&res.Campaign.ID, &res.Campaign.Name, &res.Campaign.Setting,
		&res.Campaign.BrainID, &res.Campaign.SessionID, &res.Campaign.CreatedAt)
	if err == sql.ErrNoRows {
		return loreforge.CascadeResult{Deleted: false}, nil
	}
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("load campaign: %w", err)
	}

	// Backing files, reported for post-commit cleanup.
	fileRows, err := tx.QueryContext(ctx,
		`SELECT file_path FROM sources WHERE campaign_id = ? AND file_path != ''`, id)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("list source files: %w", err)
	}
	for fileRows.Next() {
		var p string
		if err := fileRows.Scan(&p); err != nil {
			fileRows.Close()
			return loreforge.CascadeResult{}, fmt.Errorf("scan file path: %w", err)
		}
		res.FilePaths = append(res.FilePaths, p)
	}
	fileRows.Close()
	if err := fileRows.Err(); err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("iterate file paths: %w", err)
	}

	// Children first: chunks, sources, version entries, documents, campaign.
	res.Chunks, err = execCount(ctx, tx,
		`DELETE FROM chunks WHERE source_id IN (SELECT id FROM sources WHERE campaign_id = ?)`, id)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("delete chunks: %w", err)
	}
	res.Sources, err = execCount(ctx, tx, `DELETE FROM sources WHERE campaign_id = ?`, id)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("delete sources: %w", err)
	}
	res.Versions, err = execCount(ctx, tx,
		`DELETE FROM document_history WHERE document_id IN (SELECT id FROM documents WHERE campaign_id = ?)`, id)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("delete versions: %w", err)
	}
	res.Documents, err = execCount(ctx, tx, `DELETE FROM documents WHERE campaign_id = ?`, id)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("delete documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id); err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("delete campaign: %w", err)
	}

	details := fmt.Sprintf("campaign %q (%s): %d documents, %d versions, %d sources, %d chunks",
		res.Campaign.Name, id, res.Documents, res.Versions, res.Sources, res.Chunks)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		loreforge.NewID(), "campaign_deleted", details, loreforge.NowUnix(),
	); err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("append audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("commit tx: %w", err)
	}
	res.Deleted = true
	s.logger.Debug("sqlite: cascade delete ok", "campaign", id,
		"documents", res.Documents, "sources", res.Sources, "chunks", res.Chunks,
		"duration", time.Since(start))
	return res, nil
}

// --- Documents ---

func (s *Store) CreateDocument(ctx context.Context, d loreforge.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, campaign_id, title, content, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.CampaignID, d.Title, d.Content, d.Version, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (loreforge.Document, error) {
	var d loreforge.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, title, content, version, created_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.CampaignID, &d.Title, &d.Content, &d.Version, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return loreforge.Document{}, &loreforge.ErrNotFound{Kind: "document", ID: id}
	}
	if err != nil {
		return loreforge.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context, campaignID string) ([]loreforge.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, title, content, version, created_at
		 FROM documents WHERE campaign_id = ? ORDER BY created_at DESC, id DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []loreforge.Document
	for rows.Next() {
		var d loreforge.Document
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Title, &d.Content, &d.Version, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) RenameDocument(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &loreforge.ErrNotFound{Kind: "document", ID: id}
	}
	return nil
}

// DeleteDocument removes the document and its version entries together.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_history WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

// SaveDocumentVersion snapshots the current content into history (evicting
// the oldest entry once the document holds loreforge.MaxVersionEntries),
// then overwrites the content and bumps the version, all in one
// transaction.
func (s *Store) SaveDocumentVersion(ctx context.Context, documentID, newContent string) (loreforge.Document, error) {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return loreforge.Document{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var d loreforge.Document
	err = tx.QueryRowContext(ctx,
		`SELECT id, campaign_id, title, content, version, created_at FROM documents WHERE id = ?`, documentID,
	).Scan(&d.ID, &d.CampaignID, &d.Title, &d.Content, &d.Version, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return loreforge.Document{}, &loreforge.ErrNotFound{Kind: "document", ID: documentID}
	}
	if err != nil {
		return loreforge.Document{}, fmt.Errorf("load document: %w", err)
	}

	// Make room so the pre-save snapshot fits inside the cap.
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_history WHERE document_id = ?`, documentID,
	).Scan(&count); err != nil {
		return loreforge.Document{}, fmt.Errorf("count history: %w", err)
	}
	if excess := count - (loreforge.MaxVersionEntries - 1); excess > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_history WHERE id IN (
				SELECT id FROM document_history WHERE document_id = ?
				ORDER BY created_at ASC, id ASC LIMIT ?)`,
			documentID, excess,
		); err != nil {
			return loreforge.Document{}, fmt.Errorf("evict history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_history (id, document_id, content, version, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		loreforge.NewID(), documentID, d.Content, d.Version, loreforge.NowUnix(),
	); err != nil {
		return loreforge.Document{}, fmt.Errorf("insert snapshot: %w", err)
	}

	d.Content = newContent
	d.Version++
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET content = ?, version = ? WHERE id = ?`,
		d.Content, d.Version, documentID,
	); err != nil {
		return loreforge.Document{}, fmt.Errorf("update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return loreforge.Document{}, fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: save document version ok",
		"document", documentID, "version", d.Version, "duration", time.Since(start))
	return d, nil
}

// --- Version history ---

func (s *Store) ListVersions(ctx context.Context, documentID string) ([]loreforge.VersionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, version, created_at
		 FROM document_history WHERE document_id = ?
		 ORDER BY created_at DESC, id DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var entries []loreforge.VersionEntry
	for rows.Next() {
		var e loreforge.VersionEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Content, &e.Version, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetVersion(ctx context.Context, historyID string) (loreforge.VersionEntry, error) {
	var e loreforge.VersionEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, content, version, created_at FROM document_history WHERE id = ?`, historyID,
	).Scan(&e.ID, &e.DocumentID, &e.Content, &e.Version, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return loreforge.VersionEntry{}, &loreforge.ErrNotFound{Kind: "version", ID: historyID}
	}
	if err != nil {
		return loreforge.VersionEntry{}, fmt.Errorf("get version: %w", err)
	}
	return e, nil
}

// --- Sources ---

func (s *Store) CreateSource(ctx context.Context, src loreforge.Source) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, campaign_id, name, text_content, handle, mime_type, file_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.CampaignID, src.Name, src.Text, src.Handle, src.MimeType, src.FilePath, src.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (loreforge.Source, error) {
	var src loreforge.Source
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, name, text_content, handle, mime_type, file_path, created_at
		 FROM sources WHERE id = ?`, id,
	).Scan(&src.ID, &src.CampaignID, &src.Name, &src.Text, &src.Handle, &src.MimeType, &src.FilePath, &src.CreatedAt)
	if err == sql.ErrNoRows {
		return loreforge.Source{}, &loreforge.ErrNotFound{Kind: "source", ID: id}
	}
	if err != nil {
		return loreforge.Source{}, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

func (s *Store) ListSources(ctx context.Context, campaignID string) ([]loreforge.Source, error) {
	return s.querySources(ctx,
		`SELECT id, campaign_id, name, text_content, handle, mime_type, file_path, created_at
		 FROM sources WHERE campaign_id = ? ORDER BY created_at ASC, id ASC`, campaignID)
}

func (s *Store) ListGlobalSources(ctx context.Context) ([]loreforge.Source, error) {
	return s.querySources(ctx,
		`SELECT id, campaign_id, name, text_content, handle, mime_type, file_path, created_at
		 FROM sources WHERE campaign_id = '' ORDER BY created_at ASC, id ASC`)
}

func (s *Store) querySources(ctx context.Context, query string, args ...any) ([]loreforge.Source, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []loreforge.Source
	for rows.Next() {
		var src loreforge.Source
		if err := rows.Scan(&src.ID, &src.CampaignID, &src.Name, &src.Text, &src.Handle,
			&src.MimeType, &src.FilePath, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *Store) SourceAssigned(ctx context.Context, campaignID, handle string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sources WHERE campaign_id = ? AND handle = ? LIMIT 1`,
		campaignID, handle,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}

// DeleteSource removes a source and its chunks in one transaction.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return tx.Commit()
}

// DeleteGlobalSource removes a library source, every campaign-scoped copy
// sharing its handle, and all their chunks, in one transaction.
func (s *Store) DeleteGlobalSource(ctx context.Context, id string) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var handle string
	err = tx.QueryRowContext(ctx,
		`SELECT handle FROM sources WHERE id = ? AND campaign_id = ''`, id,
	).Scan(&handle)
	if err == sql.ErrNoRows {
		return &loreforge.ErrNotFound{Kind: "source", ID: id}
	}
	if err != nil {
		return fmt.Errorf("load global source: %w", err)
	}

	// The global row itself plus copies sharing the handle. A source with an
	// empty handle matches only itself.
	var copies int
	if handle != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE source_id IN (SELECT id FROM sources WHERE handle = ?)`, handle,
		); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		copies, err = execCount(ctx, tx, `DELETE FROM sources WHERE handle = ?`, handle)
		if err != nil {
			return fmt.Errorf("delete sources: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		copies, err = execCount(ctx, tx, `DELETE FROM sources WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: delete global source ok",
		"source", id, "rows", copies, "duration", time.Since(start))
	return nil
}

func (s *Store) ListUnembeddedSources(ctx context.Context) ([]loreforge.Source, error) {
	return s.querySources(ctx,
		`SELECT s.id, s.campaign_id, s.name, s.text_content, s.handle, s.mime_type, s.file_path, s.created_at
		 FROM sources s
		 WHERE s.text_content != ''
		   AND NOT EXISTS (SELECT 1 FROM chunks c WHERE c.source_id = s.id)
		 ORDER BY s.created_at ASC, s.id ASC`)
}

// --- Chunks ---

// ReplaceChunks removes any existing chunks for the source and inserts the
// given ones in a single transaction.
func (s *Store) ReplaceChunks(ctx context.Context, sourceID string, chunks []loreforge.Chunk) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, c := range chunks {
		var embJSON *string
		if len(c.Embedding) > 0 {
			v := serializeEmbedding(c.Embedding)
			embJSON = &v
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, source_id, content, chunk_index, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, sourceID, c.Content, c.ChunkIndex, embJSON, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: replace chunks ok",
		"source", sourceID, "chunks", len(chunks), "duration", time.Since(start))
	return nil
}

// GetChunksByCampaign returns every chunk belonging to any source scoped to
// the campaign, in insertion order.
func (s *Store) GetChunksByCampaign(ctx context.Context, campaignID string) ([]loreforge.Chunk, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.source_id, c.content, c.chunk_index, c.embedding, c.created_at
		 FROM chunks c
		 JOIN sources s ON s.id = c.source_id
		 WHERE s.campaign_id = ?
		 ORDER BY s.created_at ASC, s.id ASC, c.chunk_index ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []loreforge.Chunk
	for rows.Next() {
		var c loreforge.Chunk
		var embJSON sql.NullString
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Content, &c.ChunkIndex, &embJSON, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if embJSON.Valid {
			if emb, err := deserializeEmbedding(embJSON.String); err == nil {
				c.Embedding = emb
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	s.logger.Debug("sqlite: get chunks ok",
		"campaign", campaignID, "count", len(chunks), "duration", time.Since(start))
	return chunks, nil
}

// --- Audit ---

func (s *Store) AppendAudit(ctx context.Context, e loreforge.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Action, e.Details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]loreforge.AuditEntry, error) {
	query := `SELECT id, action, details, created_at FROM audit_logs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []loreforge.AuditEntry
	for rows.Next() {
		var e loreforge.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Helpers ---

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
