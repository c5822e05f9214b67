package loreforge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// LifecycleLogger sets a structured logger for deletion events.
func LifecycleLogger(l *slog.Logger) LifecycleOption {
	return func(lc *Lifecycle) { lc.logger = l }
}

// LifecycleFiles sets the file store used to remove uploaded backing files.
// Removal is best-effort; a file already gone is logged and skipped.
func LifecycleFiles(fs FileStore) LifecycleOption {
	return func(lc *Lifecycle) { lc.files = fs }
}

// Lifecycle orchestrates cascading deletion of a campaign and everything
// under it. Deletion holds the campaign's lock exclusively, the same lock
// saves and ingests take shared through Guard, so no writer can interleave
// with the cascade.
type Lifecycle struct {
	store  Store
	files  FileStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewLifecycle creates a Lifecycle over the given store.
func NewLifecycle(store Store, opts ...LifecycleOption) *Lifecycle {
	lc := &Lifecycle{
		store:  store,
		logger: nopLogger,
		locks:  make(map[string]*sync.RWMutex),
	}
	for _, o := range opts {
		o(lc)
	}
	return lc
}

// campaignLock returns the lock for a campaign, creating it on first use.
func (lc *Lifecycle) campaignLock(campaignID string) *sync.RWMutex {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	l, ok := lc.locks[campaignID]
	if !ok {
		l = &sync.RWMutex{}
		lc.locks[campaignID] = l
	}
	return l
}

// Guard runs fn while holding the campaign's lock shared, excluding a
// concurrent DeleteCampaign of the same campaign. Saves and ingests route
// through here.
func (lc *Lifecycle) Guard(campaignID string, fn func() error) error {
	l := lc.campaignLock(campaignID)
	l.RLock()
	defer l.RUnlock()
	return fn()
}

// DeleteCampaign removes the campaign, its sources and their chunks, its
// documents and their version history, and appends an audit entry, as one
// atomic unit. Deleting a campaign that does not exist returns nil: deletion
// is idempotent and an already-absent campaign writes no audit entry.
func (lc *Lifecycle) DeleteCampaign(ctx context.Context, campaignID string) error {
	l := lc.campaignLock(campaignID)
	l.Lock()
	defer l.Unlock()

	res, err := lc.store.DeleteCampaignCascade(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("delete campaign %s: %w", campaignID, err)
	}
	if !res.Deleted {
		lc.logger.Debug("campaign already absent", "campaign_id", campaignID)
		return nil
	}

	// Backing files are an external side effect: clean them up after the
	// transaction commits so a failed file removal can never strand a
	// half-deleted campaign.
	if lc.files != nil {
		for _, path := range res.FilePaths {
			if path == "" {
				continue
			}
			if err := lc.files.Remove(path); err != nil {
				lc.logger.Warn("backing file removal failed", "path", path, "error", err)
			}
		}
	}

	lc.mu.Lock()
	delete(lc.locks, campaignID)
	lc.mu.Unlock()

	lc.logger.Info("campaign deleted",
		"campaign_id", campaignID,
		"name", res.Campaign.Name,
		"sources", res.Sources,
		"chunks", res.Chunks,
		"documents", res.Documents,
		"versions", res.Versions,
	)
	return nil
}
