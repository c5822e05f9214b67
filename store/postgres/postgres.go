// Package postgres implements loreforge.Store using PostgreSQL.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool; Close here is a
// no-op so the same pool can back several components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	loreforge "github.com/loreforge/loreforge"
)

// Store implements loreforge.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ loreforge.Store = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates all required tables and indexes. Safe to call multiple
// times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			setting TEXT NOT NULL DEFAULT '',
			brain_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_history (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			text_content TEXT NOT NULL DEFAULT '',
			handle TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding JSONB,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_campaign ON documents(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_document ON document_history(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_campaign ON sources(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_handle ON sources(handle)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the caller owns the pool.
func (s *Store) Close() error { return nil }

// --- Campaigns ---

func (s *Store) CreateCampaign(ctx context.Context, c loreforge.Campaign) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, setting, brain_id, session_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Setting, c.BrainID, c.SessionID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (loreforge.Campaign, error) {
	var c loreforge.Campaign
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, setting, brain_id, session_id, created_at FROM campaigns WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Setting, &c.BrainID, &c.SessionID, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return loreforge.Campaign{}, &loreforge.ErrNotFound{Kind: "campaign", ID: id}
	}
	if err != nil {
		return loreforge.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]loreforge.Campaign, error) {
	rows, err := s.pool.Query(ctx,
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
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET name = $1, setting = $2, brain_id = $3, session_id = $4 WHERE id = $5`,
		c.Name, c.Setting, c.BrainID, c.SessionID, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &loreforge.ErrNotFound{Kind: "campaign", ID: c.ID}
	}
	return nil
}

func (s *Store) DeleteCampaignCascade(ctx context.Context, id string) (loreforge.CascadeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var res loreforge.CascadeResult
	err = tx.QueryRow(ctx,
		`SELECT id, name, setting, brain_id, session_id, created_at FROM campaigns WHERE id = $1`, id,
	).Scan(&res.Campaign.ID, &res.Campaign.Name, &res.Campaign.Setting,
		&res.Campaign.BrainID, &res.Campaign.SessionID, &res.Campaign.CreatedAt)
	if err == pgx.ErrNoRows {
		return loreforge.CascadeResult{Deleted: false}, nil
	}
	if err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("load campaign: %w", err)
	}

	fileRows, err := tx.Query(ctx,
		`SELECT file_path FROM sources WHERE campaign_id = $1 AND file_path != ''`, id)
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

	type step struct {
		count *int
		query string
	}
	steps := []step{
		{&res.Chunks, `DELETE FROM chunks WHERE source_id IN (SELECT id FROM sources WHERE campaign_id = $1)`},
		{&res.Sources, `DELETE FROM sources WHERE campaign_id = $1`},
		{&res.Versions, `DELETE FROM document_history WHERE document_id IN (SELECT id FROM documents WHERE campaign_id = $1)`},
		{&res.Documents, `DELETE FROM documents WHERE campaign_id = $1`},
		{nil, `DELETE FROM campaigns WHERE id = $1`},
	}
	for _, st := range steps {
		tag, err := tx.Exec(ctx, st.query, id)
		if err != nil {
			return loreforge.CascadeResult{}, fmt.Errorf("cascade delete: %w", err)
		}
		if st.count != nil {
			*st.count = int(tag.RowsAffected())
		}
	}

	details := fmt.Sprintf("campaign %q (%s): %d documents, %d versions, %d sources, %d chunks",
		res.Campaign.Name, id, res.Documents, res.Versions, res.Sources, res.Chunks)
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_logs (id, action, details, created_at) VALUES ($1, $2, $3, $4)`,
		loreforge.NewID(), "campaign_deleted", details, loreforge.NowUnix()); err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("append audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return loreforge.CascadeResult{}, fmt.Errorf("commit tx: %w", err)
	}
	res.Deleted = true
	return res, nil
}

// --- Documents ---

func (s *Store) CreateDocument(ctx context.Context, d loreforge.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, campaign_id, title, content, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.CampaignID, d.Title, d.Content, d.Version, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (loreforge.Document, error) {
	var d loreforge.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, campaign_id, title, content, version, created_at FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.CampaignID, &d.Title, &d.Content, &d.Version, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return loreforge.Document{}, &loreforge.ErrNotFound{Kind: "document", ID: id}
	}
	if err != nil {
		return loreforge.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context, campaignID string) ([]loreforge.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, campaign_id, title, content, version, created_at
		 FROM documents WHERE campaign_id = $1 ORDER BY created_at DESC, id DESC`, campaignID)
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
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &loreforge.ErrNotFound{Kind: "document", ID: id}
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM document_history WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) SaveDocumentVersion(ctx context.Context, documentID, newContent string) (loreforge.Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return loreforge.Document{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var d loreforge.Document
	err = tx.QueryRow(ctx,
		`SELECT id, campaign_id, title, content, version, created_at
		 FROM documents WHERE id = $1 FOR UPDATE`, documentID,
	).Scan(&d.ID, &d.CampaignID, &d.Title, &d.Content, &d.Version, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return loreforge.Document{}, &loreforge.ErrNotFound{Kind: "document", ID: documentID}
	}
	if err != nil {
		return loreforge.Document{}, fmt.Errorf("load document: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_history WHERE document_id = $1`, documentID,
	).Scan(&count); err != nil {
		return loreforge.Document{}, fmt.Errorf("count history: %w", err)
	}
	if excess := count - (loreforge.MaxVersionEntries - 1); excess > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM document_history WHERE id IN (
				SELECT id FROM document_history WHERE document_id = $1
				ORDER BY created_at ASC, id ASC LIMIT $2)`,
			documentID, excess); err != nil {
			return loreforge.Document{}, fmt.Errorf("evict history: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO document_history (id, document_id, content, version, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		loreforge.NewID(), documentID, d.Content, d.Version, loreforge.NowUnix()); err != nil {
		return loreforge.Document{}, fmt.Errorf("insert snapshot: %w", err)
	}

	d.Content = newContent
	d.Version++
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET content = $1, version = $2 WHERE id = $3`,
		d.Content, d.Version, documentID); err != nil {
		return loreforge.Document{}, fmt.Errorf("update document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return loreforge.Document{}, fmt.Errorf("commit tx: %w", err)
	}
	return d, nil
}

// --- Version history ---

func (s *Store) ListVersions(ctx context.Context, documentID string) ([]loreforge.VersionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, content, version, created_at
		 FROM document_history WHERE document_id = $1
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
	err := s.pool.QueryRow(ctx,
		`SELECT id, document_id, content, version, created_at FROM document_history WHERE id = $1`, historyID,
	).Scan(&e.ID, &e.DocumentID, &e.Content, &e.Version, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return loreforge.VersionEntry{}, &loreforge.ErrNotFound{Kind: "version", ID: historyID}
	}
	if err != nil {
		return loreforge.VersionEntry{}, fmt.Errorf("get version: %w", err)
	}
	return e, nil
}

// --- Sources ---

func (s *Store) CreateSource(ctx context.Context, src loreforge.Source) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (id, campaign_id, name, text_content, handle, mime_type, file_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		src.ID, src.CampaignID, src.Name, src.Text, src.Handle, src.MimeType, src.FilePath, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (loreforge.Source, error) {
	var src loreforge.Source
	err := s.pool.QueryRow(ctx,
		`SELECT id, campaign_id, name, text_content, handle, mime_type, file_path, created_at
		 FROM sources WHERE id = $1`, id,
	).Scan(&src.ID, &src.CampaignID, &src.Name, &src.Text, &src.Handle, &src.MimeType, &src.FilePath, &src.CreatedAt)
	if err == pgx.ErrNoRows {
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
		 FROM sources WHERE campaign_id = $1 ORDER BY created_at ASC, id ASC`, campaignID)
}

func (s *Store) ListGlobalSources(ctx context.Context) ([]loreforge.Source, error) {
	return s.querySources(ctx,
		`SELECT id, campaign_id, name, text_content, handle, mime_type, file_path, created_at
		 FROM sources WHERE campaign_id = '' ORDER BY created_at ASC, id ASC`)
}

func (s *Store) querySources(ctx context.Context, query string, args ...any) ([]loreforge.Source, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM sources WHERE campaign_id = $1 AND handle = $2 LIMIT 1`,
		campaignID, handle).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}

func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE source_id = $1`, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteGlobalSource(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var handle string
	err = tx.QueryRow(ctx,
		`SELECT handle FROM sources WHERE id = $1 AND campaign_id = ''`, id).Scan(&handle)
	if err == pgx.ErrNoRows {
		return &loreforge.ErrNotFound{Kind: "source", ID: id}
	}
	if err != nil {
		return fmt.Errorf("load global source: %w", err)
	}

	if handle != "" {
		if _, err := tx.Exec(ctx,
			`DELETE FROM chunks WHERE source_id IN (SELECT id FROM sources WHERE handle = $1)`, handle); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sources WHERE handle = $1`, handle); err != nil {
			return fmt.Errorf("delete sources: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE source_id = $1`, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
	}
	return tx.Commit(ctx)
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

func (s *Store) ReplaceChunks(ctx context.Context, sourceID string, chunks []loreforge.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, c := range chunks {
		var embJSON []byte
		if len(c.Embedding) > 0 {
			embJSON, _ = json.Marshal(c.Embedding)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, source_id, content, chunk_index, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, sourceID, c.Content, c.ChunkIndex, embJSON, c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetChunksByCampaign(ctx context.Context, campaignID string) ([]loreforge.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.source_id, c.content, c.chunk_index, c.embedding, c.created_at
		 FROM chunks c
		 JOIN sources s ON s.id = c.source_id
		 WHERE s.campaign_id = $1
		 ORDER BY s.created_at ASC, s.id ASC, c.chunk_index ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []loreforge.Chunk
	for rows.Next() {
		var c loreforge.Chunk
		var embJSON []byte
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Content, &c.ChunkIndex, &embJSON, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(embJSON) > 0 {
			_ = json.Unmarshal(embJSON, &c.Embedding)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Audit ---

func (s *Store) AppendAudit(ctx context.Context, e loreforge.AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, action, details, created_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Action, e.Details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]loreforge.AuditEntry, error) {
	query := `SELECT id, action, details, created_at FROM audit_logs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
