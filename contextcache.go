package loreforge

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ContextCache hands out provider-side pre-loaded context handles keyed by
// a campaign's exact source set. Implementations are process-wide state with
// an explicit lifecycle; swap in a distributed implementation when running
// more than one replica.
type ContextCache interface {
	// GetOrCreate returns a live cache handle for the source set when one
	// is available. ok == false means the turn should send source material
	// inline; a creation attempt may still be in flight and be adopted on a
	// later turn. systemInstruction is baked into newly created caches, so a
	// cached turn must not resend it.
	GetOrCreate(ctx context.Context, campaignID string, sourceHandles []string, systemInstruction string) (handle string, ok bool)

	// Close drops all local entries and best-effort deletes their remote
	// handles.
	Close()
}

// CacheKey derives the cache key for a campaign and source set. Handles are
// sorted so the key depends only on set membership: adding or removing a
// source changes the key and forces fresh cache creation.
func CacheKey(campaignID string, sourceHandles []string) string {
	sorted := make([]string, len(sourceHandles))
	copy(sorted, sourceHandles)
	sort.Strings(sorted)
	return campaignID + "|" + strings.Join(sorted, "|")
}

const (
	// DefaultCacheTTL is the requested provider-side cache lifetime.
	DefaultCacheTTL = time.Hour
	// DefaultCacheSafetyMargin is subtracted from the TTL for the locally
	// tracked expiry, so the local entry lapses before the provider's does.
	DefaultCacheSafetyMargin = 100 * time.Second
	// DefaultCacheWaitBudget bounds how long a turn waits for an in-flight
	// creation before falling back to inline content.
	DefaultCacheWaitBudget = 2 * time.Second
	// defaultCreateTimeout bounds the detached remote creation call itself.
	defaultCreateTimeout = 30 * time.Second
)

// CacheManagerOption configures a CacheManager.
type CacheManagerOption func(*CacheManager)

// CacheTTL sets the requested provider-side cache lifetime.
func CacheTTL(ttl time.Duration) CacheManagerOption {
	return func(m *CacheManager) { m.ttl = ttl }
}

// CacheSafetyMargin sets how much earlier than the provider the local
// entry expires.
func CacheSafetyMargin(d time.Duration) CacheManagerOption {
	return func(m *CacheManager) { m.margin = d }
}

// CacheWaitBudget sets how long GetOrCreate waits for an in-flight
// creation before returning ok == false.
func CacheWaitBudget(d time.Duration) CacheManagerOption {
	return func(m *CacheManager) { m.waitBudget = d }
}

// CacheLogger sets a structured logger for cache lifecycle events.
func CacheLogger(l *slog.Logger) CacheManagerOption {
	return func(m *CacheManager) { m.logger = l }
}

// cacheEntry is one slot in the manager's table. Exactly one of the two
// shapes is populated: pending (done != nil) or live (handle != "").
type cacheEntry struct {
	handle    string
	expiresAt time.Time
	done      chan struct{}
}

// CacheManager implements ContextCache over a CacheService. Creation is
// single-flight per key: the first cold turn launches one remote creation;
// concurrent turns wait briefly on the same attempt and otherwise proceed
// inline. Entries are created lazily and expire lazily on read; StartSweeper
// adds a background sweep on top.
type CacheManager struct {
	svc        CacheService
	ttl        time.Duration
	margin     time.Duration
	waitBudget time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry

	sweepStop chan struct{}
	sweepOnce sync.Once
}

var _ ContextCache = (*CacheManager)(nil)

// NewCacheManager creates a CacheManager over the given cache service.
func NewCacheManager(svc CacheService, opts ...CacheManagerOption) *CacheManager {
	m := &CacheManager{
		svc:        svc,
		ttl:        DefaultCacheTTL,
		margin:     DefaultCacheSafetyMargin,
		waitBudget: DefaultCacheWaitBudget,
		logger:     nopLogger,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry),
		sweepStop:  make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetOrCreate implements ContextCache.
func (m *CacheManager) GetOrCreate(ctx context.Context, campaignID string, sourceHandles []string, systemInstruction string) (string, bool) {
	if len(sourceHandles) == 0 {
		return "", false
	}
	key := CacheKey(campaignID, sourceHandles)

	m.mu.Lock()
	e, exists := m.entries[key]
	if exists && e.done == nil {
		if m.now().Before(e.expiresAt) {
			handle := e.handle
			m.mu.Unlock()
			return handle, true
		}
		// Expired: drop locally, best-effort remote delete, then recreate.
		delete(m.entries, key)
		stale := e.handle
		m.mu.Unlock()
		go m.deleteRemote(stale)
		m.mu.Lock()
		e, exists = m.entries[key]
	}

	var wait chan struct{}
	if exists && e.done != nil {
		// Another turn is already creating this key.
		wait = e.done
	} else if !exists {
		// First cold turn: claim the slot and launch creation detached
		// from this request's lifetime.
		pending := &cacheEntry{done: make(chan struct{})}
		m.entries[key] = pending
		wait = pending.done
		go m.create(key, sourceHandles, systemInstruction, pending)
	} else {
		// A concurrent caller already replaced the slot with a live entry.
		handle := e.handle
		m.mu.Unlock()
		return handle, true
	}
	m.mu.Unlock()

	// Never block a turn indefinitely on cache creation.
	timer := time.NewTimer(m.waitBudget)
	defer timer.Stop()
	select {
	case <-wait:
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.done == nil && m.now().Before(e.expiresAt) {
		return e.handle, true
	}
	return "", false
}

// create runs the single remote creation attempt for a key and resolves the
// pending entry. Failure is non-fatal: the slot is cleared so the next turn
// retries.
func (m *CacheManager) create(key string, sourceHandles []string, systemInstruction string, pending *cacheEntry) {
	defer close(pending.done)

	ctx, cancel := context.WithTimeout(context.Background(), defaultCreateTimeout)
	defer cancel()

	handle, err := m.svc.CreateCachedContent(ctx, sourceHandles, systemInstruction, m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Only resolve our own pending slot; Close or an expiry race may have
	// replaced it.
	if cur, ok := m.entries[key]; !ok || cur != pending {
		if err == nil {
			go m.deleteRemote(handle)
		}
		return
	}
	if err != nil {
		m.logger.Warn("context cache creation failed", "key", key, "error", err)
		delete(m.entries, key)
		return
	}
	pending.handle = handle
	pending.expiresAt = m.now().Add(m.ttl - m.margin)
	pending.done = nil
	m.logger.Debug("context cache created", "key", key, "handle", handle, "expires_at", pending.expiresAt)
}

// deleteRemote best-effort drops a provider-side cache handle.
func (m *CacheManager) deleteRemote(handle string) {
	if handle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultCreateTimeout)
	defer cancel()
	if err := m.svc.DeleteCachedContent(ctx, handle); err != nil {
		m.logger.Debug("context cache remote delete failed", "handle", handle, "error", err)
	}
}

// StartSweeper launches a background goroutine that periodically drops
// expired entries and deletes their remote handles. Stopped by Close.
func (m *CacheManager) StartSweeper(interval time.Duration) {
	m.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.sweep()
				case <-m.sweepStop:
					return
				}
			}
		}()
	})
}

// sweep removes every expired live entry.
func (m *CacheManager) sweep() {
	now := m.now()
	var stale []string

	m.mu.Lock()
	for key, e := range m.entries {
		if e.done == nil && !now.Before(e.expiresAt) {
			stale = append(stale, e.handle)
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()

	for _, h := range stale {
		m.deleteRemote(h)
	}
}

// Close implements ContextCache.
func (m *CacheManager) Close() {
	select {
	case <-m.sweepStop:
	default:
		close(m.sweepStop)
	}

	m.mu.Lock()
	var handles []string
	for key, e := range m.entries {
		if e.done == nil {
			handles = append(handles, e.handle)
		}
		delete(m.entries, key)
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.deleteRemote(h)
	}
}
