package outbox

import (
	"context"
	"sync"

	"github.com/datngoHD/white-label-app/internal/client/models"
)

// ExecutorFunc performs the server-side effect of one mutation. The payload
// is whatever was captured at submission; implementations must not rely on
// anything outside it, because after a restart only the record survives.
type ExecutorFunc func(ctx context.Context, m *models.QueuedMutation) error

// Registration binds an executor to a (scope, mutationKey) pair, plus the
// cache prefixes a successful run invalidates.
type Registration struct {
	Execute     ExecutorFunc
	Invalidates func(m *models.QueuedMutation) []models.Key
}

// Registry resolves executors by (scope, mutationKey). Restored mutations
// go through it instead of carrying closures, so everything queued before a
// restart can still run after one.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Registration)}
}

// Register installs the executor for a (scope, mutationKey) pair,
// replacing any previous registration.
func (r *Registry) Register(scope, mutationKey string, reg Registration) {
	r.mu.Lock()
	r.handlers[registryKey(scope, mutationKey)] = reg
	r.mu.Unlock()
}

// Resolve returns the registration for the pair, if any.
func (r *Registry) Resolve(scope, mutationKey string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[registryKey(scope, mutationKey)]
	return reg, ok
}

func registryKey(scope, mutationKey string) string {
	return scope + "\x1f" + mutationKey
}
