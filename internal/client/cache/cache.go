// Package cache implements the tenant-scoped query cache: on-demand fetches
// with TTL-based freshness, stale-while-revalidate serving, offline reads
// from cached data, and prefix invalidation. Entries carry raw JSON so they
// pass through the persistence adapter losslessly.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/datngoHD/white-label-app/internal/client/connectivity"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

const (
	// DefaultStaleTime is how long a fetched entry is served without
	// revalidation.
	DefaultStaleTime = 5 * time.Minute
	// DefaultGCTime is how long an untouched entry survives before the
	// janitor removes it.
	DefaultGCTime = 24 * time.Hour

	defaultRetryBase  = 1 * time.Second
	defaultRetryCap   = 4 * time.Second
	defaultMaxRetries = 3

	revalidateTimeout = 30 * time.Second
)

// FetchFunc loads the current value for a key from the backend.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Options tune a QueryCache. Zero values fall back to the defaults above.
type Options struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	RetryBase  time.Duration
	RetryCap   time.Duration
	MaxRetries uint64
	Now        func() time.Time
}

func (o *Options) applyDefaults() {
	if o.StaleTime <= 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.GCTime <= 0 {
		o.GCTime = DefaultGCTime
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RetryCap <= 0 {
		o.RetryCap = defaultRetryCap
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// QueryCache keeps read results in memory, keyed by the canonical string
// form of models.Key. It remembers the fetcher used for every key so that
// reconnecting or invalidating can revalidate without the caller
// re-supplying it. Concurrent revalidations of the same key are not
// deduplicated; the last completed write wins.
type QueryCache struct {
	log     logging.Logger
	monitor connectivity.Monitor
	opts    Options

	mu       sync.Mutex
	entries  map[string]*models.CacheEntry
	fetchers map[string]FetchFunc
	onChange func()
}

// NewQueryCache builds a cache bound to the given connectivity monitor.
func NewQueryCache(monitor connectivity.Monitor, log logging.Logger, opts Options) *QueryCache {
	if log == nil {
		log = logging.Default()
	}
	opts.applyDefaults()
	return &QueryCache{
		log:      log,
		monitor:  monitor,
		opts:     opts,
		entries:  make(map[string]*models.CacheEntry),
		fetchers: make(map[string]FetchFunc),
	}
}

// SetOnChange registers a callback invoked after every content change, so
// the persistence adapter can schedule a save. Must be set before use.
func (c *QueryCache) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Fetch returns the value for key. A fresh entry is served as is. A stale
// entry is served immediately while a background revalidation runs. With no
// usable entry the fetch blocks, retrying transient failures with capped
// exponential backoff. Offline, whatever is cached is served regardless of
// staleness; with nothing cached the call fails with a network error.
func (c *QueryCache) Fetch(ctx context.Context, key models.Key, fn FetchFunc) (json.RawMessage, error) {
	ks := key.String()
	now := c.opts.Now()

	c.mu.Lock()
	c.fetchers[ks] = fn
	entry, ok := c.entries[ks]
	if ok && entry.Expired(now) {
		delete(c.entries, ks)
		entry, ok = nil, false
	}
	online := c.monitor.IsOnline()

	if ok {
		data := entry.Data
		fresh := entry.Fresh(now)
		c.mu.Unlock()
		if !fresh && online {
			go c.revalidate(key, fn)
		}
		return data, nil
	}
	c.mu.Unlock()

	if !online {
		return nil, common.NewNetworkError("offline and no cached data for this query")
	}

	data, err := c.fetchWithRetry(ctx, fn)
	if err != nil {
		return nil, err
	}
	c.store(key, data)
	return data, nil
}

// Invalidate marks every entry under the prefix stale and, when online,
// revalidates each one in the background.
func (c *QueryCache) Invalidate(prefix models.Key) {
	now := c.opts.Now()

	c.mu.Lock()
	var matched []models.Key
	for _, entry := range c.entries {
		if entry.Key.Matches(prefix) {
			entry.StaleAt = now
			matched = append(matched, entry.Key)
		}
	}
	online := c.monitor.IsOnline()
	changed := c.onChange
	c.mu.Unlock()

	if len(matched) == 0 {
		return
	}
	if changed != nil {
		changed()
	}
	if !online {
		return
	}
	for _, key := range matched {
		c.mu.Lock()
		fn := c.fetchers[key.String()]
		c.mu.Unlock()
		if fn != nil {
			go c.revalidate(key, fn)
		}
	}
}

// RevalidateTracked refetches every tracked, non-expired key. Wired to the
// connectivity monitor so values catch up after a reconnect.
func (c *QueryCache) RevalidateTracked() {
	now := c.opts.Now()

	c.mu.Lock()
	type pair struct {
		key models.Key
		fn  FetchFunc
	}
	var stale []pair
	for ks, entry := range c.entries {
		if entry.Expired(now) {
			continue
		}
		if fn := c.fetchers[ks]; fn != nil {
			stale = append(stale, pair{entry.Key, fn})
		}
	}
	c.mu.Unlock()

	for _, p := range stale {
		go c.revalidate(p.key, p.fn)
	}
}

// Sweep drops every entry past the gc horizon and returns how many were
// removed.
func (c *QueryCache) Sweep() int {
	now := c.opts.Now()

	c.mu.Lock()
	removed := 0
	for ks, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, ks)
			delete(c.fetchers, ks)
			removed++
		}
	}
	changed := c.onChange
	c.mu.Unlock()

	if removed > 0 && changed != nil {
		changed()
	}
	return removed
}

// StartJanitor sweeps expired entries on the given interval until ctx is
// done.
func (c *QueryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Debug(ctx, "cache janitor removed expired entries", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Snapshot returns a copy of every non-expired entry for persistence.
func (c *QueryCache) Snapshot() []models.CacheEntry {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.Expired(now) {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// Restore loads persisted entries, skipping any that expired while the app
// was closed. It replaces the current contents and is meant to run before
// first use.
func (c *QueryCache) Restore(entries []models.CacheEntry) {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.CacheEntry, len(entries))
	for i := range entries {
		entry := entries[i]
		if entry.Expired(now) {
			continue
		}
		c.entries[entry.Key.String()] = &entry
	}
}

// Clear drops every entry and tracked fetcher, e.g. on logout.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*models.CacheEntry)
	c.fetchers = make(map[string]FetchFunc)
	changed := c.onChange
	c.mu.Unlock()

	if changed != nil {
		changed()
	}
}

// Len reports the number of live entries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) store(key models.Key, data json.RawMessage) {
	now := c.opts.Now()
	entry := &models.CacheEntry{
		Key:       key,
		Data:      data,
		FetchedAt: now,
		StaleAt:   now.Add(c.opts.StaleTime),
		ExpiresAt: now.Add(c.opts.GCTime),
	}

	c.mu.Lock()
	c.entries[key.String()] = entry
	changed := c.onChange
	c.mu.Unlock()

	if changed != nil {
		changed()
	}
}

func (c *QueryCache) revalidate(key models.Key, fn FetchFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	data, err := c.fetchWithRetry(ctx, fn)
	if err != nil {
		c.log.Warn(ctx, "background revalidation failed", "key", key.Domain, "error", err)
		return
	}
	c.store(key, data)
}

// fetchWithRetry runs fn, retrying network errors and 5xx responses with
// jitter-free exponential backoff capped at the configured ceiling.
func (c *QueryCache) fetchWithRetry(ctx context.Context, fn FetchFunc) (json.RawMessage, error) {
	backoff := retry.WithMaxRetries(c.opts.MaxRetries,
		retry.WithCappedDuration(c.opts.RetryCap, retry.NewExponential(c.opts.RetryBase)))

	var data json.RawMessage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		data, err = fn(ctx)
		if err != nil && common.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
