// Package usage caches per-user consumption snapshots fetched from the
// backend and gates generation requests against plan limits.
//
// The cache is the only component allowed to answer "can this user generate
// right now". It prefers a recent backend answer, tolerates a stale one
// when the backend is unreachable, and refuses to guess when it has
// nothing: an unknown quota denies, never allows.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seopilot/internal/types"
)

// DefaultTTL bounds how long a snapshot is served without a refresh.
const DefaultTTL = 60 * time.Second

// Fetcher retrieves the current usage counters from the backend. The
// context carries the acting user's identity for token resolution.
// Implemented by backend.APIClient.
type Fetcher interface {
	GetUsage(ctx context.Context) (*types.UsageSnapshot, error)
}

// Cache holds one usage snapshot per local user with a freshness TTL.
// Concurrent lookups for the same user coalesce into a single backend
// fetch; lookups for different users never block each other.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	clock   types.Clock
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// entry serializes fetches for one user. The entry lock is held across the
// backend call; the cache lock is not.
type entry struct {
	mu   sync.Mutex
	snap *types.UsageSnapshot
}

func NewCache(fetcher Fetcher, ttl time.Duration, clock types.Clock, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Get returns the user's usage snapshot, refreshing from the backend when
// the cached one is older than the TTL or forceRefresh is set.
//
// When a refresh fails and a previous snapshot exists, that snapshot is
// returned with Stale set so callers can surface degraded data honestly.
// Auth failures are never papered over with stale data: a signed-out user
// gets the error, not their old numbers.
func (c *Cache) Get(ctx context.Context, localUserID string, forceRefresh bool) (*types.UsageSnapshot, error) {
	e := c.entry(localUserID)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := c.clock.Now()
	if e.snap != nil && !forceRefresh && now.Sub(e.snap.FetchedAt) < c.ttl {
		return copySnapshot(e.snap), nil
	}

	fresh, err := c.fetcher.GetUsage(ctx)
	if err != nil {
		if types.IsAuthRequired(err) {
			e.snap = nil
			return nil, err
		}
		if e.snap != nil {
			c.logger.WarnContext(ctx, "usage refresh failed, serving stale snapshot",
				slog.String("local_user_id", localUserID),
				slog.Time("fetched_at", e.snap.FetchedAt),
				slog.String("error", err.Error()))
			stale := copySnapshot(e.snap)
			stale.Stale = true
			return stale, nil
		}
		return nil, err
	}

	// A concurrent optimistic increment cannot have run between the fetch
	// and here: the entry lock covers both. The backend answer wins.
	e.snap = fresh
	return copySnapshot(fresh), nil
}

// Peek returns the cached snapshot without fetching, or nil. Stale entries
// are returned as-is; the caller decides whether age matters.
func (c *Cache) Peek(localUserID string) *types.UsageSnapshot {
	e := c.entry(localUserID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return nil
	}
	return copySnapshot(e.snap)
}

// Increment optimistically bumps the cached consumption counter after a
// successful generation, without waiting for the next backend refresh. A
// user with no cached snapshot is a no-op; the next Get fetches truth.
func (c *Cache) Increment(localUserID string, n int) {
	if n <= 0 {
		return
	}

	e := c.entry(localUserID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap == nil {
		return
	}

	e.snap.Used += n
	if e.snap.Limit > 0 {
		e.snap.Remaining = e.snap.Limit - e.snap.Used
		if e.snap.Remaining < 0 {
			e.snap.Remaining = 0
		}
	}
	// FetchedAt is untouched: the bump is a local guess, not a refresh,
	// and must not extend the snapshot's lifetime.
}

// Invalidate drops the user's cached snapshot. Called on login, logout,
// and plan changes.
func (c *Cache) Invalidate(localUserID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, localUserID)
}

func (c *Cache) entry(localUserID string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[localUserID]
	if !ok {
		e = &entry{}
		c.entries[localUserID] = e
	}
	return e
}

func copySnapshot(s *types.UsageSnapshot) *types.UsageSnapshot {
	cp := *s
	return &cp
}
