// Package connectivity tracks whether the device is online and notifies
// subscribers on transitions. Replay of queued mutations and cache
// revalidation are gated on it.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/datngoHD/white-label-app/internal/logging"
)

// Monitor exposes the current online/offline state and transition events.
type Monitor interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

const probeTimeout = 3 * time.Second

// Manager is the concrete Monitor. State changes come from a periodic probe
// (Watch) or from an explicit SetOnline override. Offline transitions are
// debounced so a flaky connection does not flap subscribers.
type Manager struct {
	log             logging.Logger
	offlineDebounce time.Duration

	mu             sync.Mutex
	online         bool
	subs           map[int]func(bool)
	nextID         int
	pendingOffline *time.Timer
}

// NewManager returns a Manager that assumes the device is online until a
// probe or override says otherwise.
func NewManager(log logging.Logger, offlineDebounce time.Duration) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		log:             log,
		offlineDebounce: offlineDebounce,
		online:          true,
		subs:            make(map[int]func(bool)),
	}
}

func (m *Manager) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for transition events. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetOnline applies a connectivity observation. Going online takes effect
// immediately and cancels any pending offline transition; going offline is
// deferred by the debounce window.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()

	if online {
		if m.pendingOffline != nil {
			m.pendingOffline.Stop()
			m.pendingOffline = nil
		}
		if m.online {
			m.mu.Unlock()
			return
		}
		m.online = true
		subs := m.snapshotSubs()
		m.mu.Unlock()
		m.log.Info(context.Background(), "connectivity restored")
		for _, fn := range subs {
			fn(true)
		}
		return
	}

	if !m.online || m.pendingOffline != nil {
		m.mu.Unlock()
		return
	}
	if m.offlineDebounce <= 0 {
		m.applyOfflineLocked()
		return
	}
	m.pendingOffline = time.AfterFunc(m.offlineDebounce, func() {
		m.mu.Lock()
		m.pendingOffline = nil
		if !m.online {
			m.mu.Unlock()
			return
		}
		m.applyOfflineLocked()
	})
	m.mu.Unlock()
}

// applyOfflineLocked flips to offline and notifies. Called with mu held;
// releases it.
func (m *Manager) applyOfflineLocked() {
	m.online = false
	subs := m.snapshotSubs()
	m.mu.Unlock()
	m.log.Warn(context.Background(), "connectivity lost")
	for _, fn := range subs {
		fn(false)
	}
}

func (m *Manager) snapshotSubs() []func(bool) {
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}

// Watch probes reachability on the given interval until ctx is done,
// feeding observations into SetOnline. probe should be a cheap liveness
// check against the backend.
func (m *Manager) Watch(ctx context.Context, interval time.Duration, probe func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := probe(probeCtx)
			cancel()
			m.SetOnline(err == nil)
		case <-ctx.Done():
			return
		}
	}
}
