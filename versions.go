package loreforge

import (
	"context"
	"fmt"
	"sync"
)

// VersionStore wraps the Store's document-version operations with
// per-document serialization so two concurrent saves of the same document
// cannot interleave the read/evict/insert/update sequence.
type VersionStore struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewVersionStore creates a VersionStore over the given store.
func NewVersionStore(store Store) *VersionStore {
	return &VersionStore{store: store, locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex for a document, creating it on first use.
func (v *VersionStore) lockFor(documentID string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		v.locks[documentID] = l
	}
	return l
}

// forget drops the per-document lock after the document is deleted.
func (v *VersionStore) forget(documentID string) {
	v.mu.Lock()
	delete(v.locks, documentID)
	v.mu.Unlock()
}

// Save snapshots the document's current content into its version history
// and overwrites it with newContent, bumping the version by one. History is
// capped at MaxVersionEntries; the oldest entry is evicted first. Returns
// the updated document.
func (v *VersionStore) Save(ctx context.Context, documentID, newContent string) (Document, error) {
	l := v.lockFor(documentID)
	l.Lock()
	defer l.Unlock()

	doc, err := v.store.SaveDocumentVersion(ctx, documentID, newContent)
	if err != nil {
		return Document{}, fmt.Errorf("save document %s: %w", documentID, err)
	}
	return doc, nil
}

// Restore fetches a version entry's content and hands it back as the new
// working content. It does not persist anything: the caller decides
// whether to follow up with Save, so a restore that is abandoned leaves
// both the document and its history untouched.
func (v *VersionStore) Restore(ctx context.Context, historyID string) (string, error) {
	entry, err := v.store.GetVersion(ctx, historyID)
	if err != nil {
		return "", err
	}
	return entry.Content, nil
}

// History returns the document's version entries, newest first.
func (v *VersionStore) History(ctx context.Context, documentID string) ([]VersionEntry, error) {
	return v.store.ListVersions(ctx, documentID)
}

// DeleteDocument removes the document together with its version entries
// and releases the per-document lock.
func (v *VersionStore) DeleteDocument(ctx context.Context, documentID string) error {
	l := v.lockFor(documentID)
	l.Lock()
	defer l.Unlock()

	if err := v.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	v.forget(documentID)
	return nil
}
