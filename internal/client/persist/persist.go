// Package persist serializes the query cache and the mutation queue into a
// single versioned JSON blob and writes it through a throttled writer, so a
// burst of state changes costs one storage write.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/repositories/blob"
	"github.com/datngoHD/white-label-app/internal/logging"
)

const (
	// PayloadVersion is bumped whenever the payload shape changes. A
	// restored payload with any other version is discarded rather than
	// migrated.
	PayloadVersion = 1

	// DefaultThrottle is the trailing-edge save coalescing window.
	DefaultThrottle = 1 * time.Second

	blobKey      = "client-state"
	writeTimeout = 5 * time.Second
)

// Payload is the persisted shape of the offline state.
type Payload struct {
	Version   int                     `json:"version"`
	SavedAt   time.Time               `json:"savedAt"`
	Cache     []models.CacheEntry     `json:"cache"`
	Mutations []models.QueuedMutation `json:"mutations"`
}

// Source produces the current state to persist. The query cache and the
// outbox each contribute their half.
type Source interface {
	Snapshot() Payload
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Payload

func (f SourceFunc) Snapshot() Payload { return f() }

// Adapter owns the save throttle and the restore path. Schedule may be
// called from any goroutine; actual writes happen on the adapter's timer.
type Adapter struct {
	store    blob.Store
	source   Source
	log      logging.Logger
	throttle time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending *time.Timer
	dirty   bool
	closed  bool
}

// NewAdapter builds an adapter over the given backing store. throttle <= 0
// falls back to DefaultThrottle.
func NewAdapter(store blob.Store, source Source, log logging.Logger, throttle time.Duration) *Adapter {
	if log == nil {
		log = logging.Default()
	}
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Adapter{
		store:    store,
		source:   source,
		log:      log,
		throttle: throttle,
		now:      time.Now,
	}
}

// Schedule marks the state dirty and arms the trailing-edge timer. Changes
// arriving while the timer runs coalesce into the same write.
func (a *Adapter) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.dirty = true
	if a.pending != nil {
		return
	}
	a.pending = time.AfterFunc(a.throttle, a.flushTimer)
}

// Flush writes immediately if anything is dirty. Called on shutdown and on
// app background transitions.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	a.dirty = false
	a.mu.Unlock()

	return a.save(ctx)
}

// Close flushes and stops accepting further schedules.
func (a *Adapter) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return err
}

// Restore reads the persisted payload. It returns (nil, nil) when nothing
// was saved or the saved version does not match: a discarded payload is not
// an error, the app simply starts cold.
func (a *Adapter) Restore(ctx context.Context) (*Payload, error) {
	raw, found, err := a.store.Get(ctx, blobKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted state: %w", err)
	}
	if !found {
		return nil, nil
	}

	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		a.log.Warn(ctx, "discarding unreadable persisted state", "error", err)
		return nil, nil
	}
	if payload.Version != PayloadVersion {
		a.log.Warn(ctx, "discarding persisted state with mismatched version",
			"got", payload.Version, "want", PayloadVersion)
		return nil, nil
	}
	return &payload, nil
}

// Clear removes the persisted payload, e.g. on logout.
func (a *Adapter) Clear(ctx context.Context) error {
	a.mu.Lock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	a.dirty = false
	a.mu.Unlock()
	return a.store.Remove(ctx, blobKey)
}

func (a *Adapter) flushTimer() {
	a.mu.Lock()
	a.pending = nil
	if !a.dirty || a.closed {
		a.mu.Unlock()
		return
	}
	a.dirty = false
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.save(ctx); err != nil {
		a.log.Error(ctx, "failed to persist client state", "error", err)
	}
}

func (a *Adapter) save(ctx context.Context) error {
	payload := a.source.Snapshot()
	payload.Version = PayloadVersion
	payload.SavedAt = a.now()

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode persisted state: %w", err)
	}
	if err := a.store.Set(ctx, blobKey, string(raw)); err != nil {
		return fmt.Errorf("failed to write persisted state: %w", err)
	}
	a.log.Debug(ctx, "client state persisted",
		"cacheEntries", len(payload.Cache), "pendingMutations", len(payload.Mutations))
	return nil
}
