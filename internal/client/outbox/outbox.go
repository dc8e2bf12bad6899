// Package outbox implements the durable mutation queue: writes submitted
// offline (or interrupted by a network failure) survive restarts and replay
// in submission order once connectivity returns. Each scope is a serial
// lane; distinct scopes replay concurrently.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/datngoHD/white-label-app/internal/client/connectivity"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

const (
	// DefaultMaxRetries is how many times a failed execution is retried
	// before the mutation fails terminally.
	DefaultMaxRetries = 3
	// DefaultMaxAge is how long a queued mutation stays replayable. Older
	// records are dropped as stale without executing.
	DefaultMaxAge = 24 * time.Hour
	// DefaultMaxQueue bounds the number of pending mutations.
	DefaultMaxQueue = 100

	defaultRetryBase = 1 * time.Second
	defaultRetryCap  = 4 * time.Second
)

// ErrQueueFull is returned by Submit when the pending queue is at capacity.
var ErrQueueFull = errors.New("mutation queue is full")

// Invalidator is the slice of the query cache the outbox needs: marking
// prefixes stale after a mutation lands.
type Invalidator interface {
	Invalidate(prefix models.Key)
}

// Options tune an Outbox. Zero values fall back to the defaults above.
type Options struct {
	MaxRetries int
	MaxAge     time.Duration
	MaxQueue   int
	RetryBase  time.Duration
	RetryCap   time.Duration
	Now        func() time.Time
}

func (o *Options) applyDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.MaxQueue <= 0 {
		o.MaxQueue = DefaultMaxQueue
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RetryCap <= 0 {
		o.RetryCap = defaultRetryCap
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Outbox owns the per-scope mutation queues. All executions, inline or
// replayed, pass through the scope's lane lock, so ordering within a scope
// is strict even when submissions race a replay.
type Outbox struct {
	log         logging.Logger
	monitor     connectivity.Monitor
	registry    *Registry
	invalidator Invalidator
	opts        Options

	mu       sync.Mutex
	queues   map[string][]*models.QueuedMutation
	lanes    map[string]*sync.Mutex
	onChange func()
	onSynced func(m models.QueuedMutation, err error)
}

// NewOutbox builds an outbox. invalidator may be nil when no cache is wired.
func NewOutbox(monitor connectivity.Monitor, registry *Registry, invalidator Invalidator, log logging.Logger, opts Options) *Outbox {
	if log == nil {
		log = logging.Default()
	}
	opts.applyDefaults()
	return &Outbox{
		log:         log,
		monitor:     monitor,
		registry:    registry,
		invalidator: invalidator,
		opts:        opts,
		queues:      make(map[string][]*models.QueuedMutation),
		lanes:       make(map[string]*sync.Mutex),
	}
}

// SetOnChange registers a callback invoked after every queue change, for
// the persistence adapter.
func (o *Outbox) SetOnChange(fn func()) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// SetOnSynced registers a listener for sync outcomes: err is nil when the
// mutation landed, otherwise the terminal failure. Mutations that remain
// queued produce no notification.
func (o *Outbox) SetOnSynced(fn func(m models.QueuedMutation, err error)) {
	o.mu.Lock()
	o.onSynced = fn
	o.mu.Unlock()
}

// Submit records a mutation and, when online, executes it through the
// scope's lane. Offline behavior depends on requiresNetwork: true fails
// immediately with a network error and leaves no record; false queues the
// mutation for replay and returns nil.
func (o *Outbox) Submit(ctx context.Context, scope, mutationKey, tenantID string, requiresNetwork bool, payload []byte) error {
	online := o.monitor.IsOnline()
	if !online && requiresNetwork {
		return common.NewNetworkError("this action requires a connection")
	}

	now := o.opts.Now()
	m := &models.QueuedMutation{
		ID:              uuid.NewString(),
		Key:             mutationKey,
		Scope:           scope,
		TenantID:        tenantID,
		Payload:         payload,
		SubmittedAt:     now,
		MaxRetries:      o.opts.MaxRetries,
		RequiresNetwork: requiresNetwork,
		State:           models.MutationSubmitted,
	}
	if !online {
		m.State = models.MutationQueued
	}

	if err := o.enqueue(m); err != nil {
		return err
	}

	if !online {
		return nil
	}
	return o.drainScope(ctx, scope, m.ID)
}

// Replay drains every scope concurrently, oldest mutation first within each.
// It stops early for a scope when connectivity drops again. Wired to the
// connectivity monitor's online transition.
func (o *Outbox) Replay(ctx context.Context) error {
	o.mu.Lock()
	scopes := make([]string, 0, len(o.queues))
	for scope, q := range o.queues {
		if len(q) > 0 {
			scopes = append(scopes, scope)
		}
	}
	o.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, scope := range scopes {
		g.Go(func() error {
			// Terminal per-mutation failures are reported through the
			// sync listener and never abort sibling scopes.
			return o.drainScope(ctx, scope, "")
		})
	}
	return g.Wait()
}

// Clear drops every pending mutation without executing or notifying, e.g.
// on logout.
func (o *Outbox) Clear() {
	o.mu.Lock()
	o.queues = make(map[string][]*models.QueuedMutation)
	changed := o.onChange
	o.mu.Unlock()

	if changed != nil {
		changed()
	}
}

// PendingCount reports the total number of queued mutations across scopes.
func (o *Outbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, q := range o.queues {
		n += len(q)
	}
	return n
}

// Snapshot returns a copy of every pending mutation for persistence,
// grouped by scope in submission order.
func (o *Outbox) Snapshot() []models.QueuedMutation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.QueuedMutation, 0)
	for _, q := range o.queues {
		for _, m := range q {
			out = append(out, *m)
		}
	}
	return out
}

// Restore loads persisted mutations. Records whose executor is no longer
// registered cannot run and fail terminally right away; the rest are queued
// in the order given. Meant to run before first use.
func (o *Outbox) Restore(ms []models.QueuedMutation) {
	for i := range ms {
		m := ms[i]
		if _, ok := o.registry.Resolve(m.Scope, m.Key); !ok {
			o.log.Error(context.Background(), "dropping restored mutation with no registered executor",
				"scope", m.Scope, "key", m.Key, "id", m.ID)
			m.State = models.MutationFailedTerminal
			o.notify(&m, &common.APIError{
				Code:    common.CodeUnknownError,
				Message: fmt.Sprintf("no executor registered for %s/%s", m.Scope, m.Key),
			})
			continue
		}
		m.State = models.MutationQueued
		o.mu.Lock()
		o.queues[m.Scope] = append(o.queues[m.Scope], &m)
		o.mu.Unlock()
	}
}

func (o *Outbox) enqueue(m *models.QueuedMutation) error {
	o.mu.Lock()
	total := 0
	for _, q := range o.queues {
		total += len(q)
	}
	if total >= o.opts.MaxQueue {
		o.mu.Unlock()
		return ErrQueueFull
	}
	o.queues[m.Scope] = append(o.queues[m.Scope], m)
	changed := o.onChange
	o.mu.Unlock()

	if changed != nil {
		changed()
	}
	return nil
}

// drainScope processes the scope's queue head by head under the lane lock.
// With untilID set it returns that mutation's outcome once processed;
// otherwise it runs until the queue is empty or the scope pauses offline.
func (o *Outbox) drainScope(ctx context.Context, scope, untilID string) error {
	lane := o.lane(scope)
	lane.Lock()
	defer lane.Unlock()

	for {
		o.mu.Lock()
		q := o.queues[scope]
		if len(q) == 0 {
			o.mu.Unlock()
			return nil
		}
		head := q[0]
		o.mu.Unlock()

		done, err := o.processHead(ctx, scope, head)
		if !done {
			// Paused: the head stays queued for the next replay.
			return nil
		}
		if head.ID == untilID {
			return err
		}
		if err != nil {
			o.log.Warn(ctx, "queued mutation failed terminally",
				"scope", scope, "key", head.Key, "error", err)
		}
	}
}

// processHead executes one mutation. done is false when the mutation was
// left queued (offline pause); otherwise it was removed from the queue and
// err carries the terminal outcome, nil for success.
func (o *Outbox) processHead(ctx context.Context, scope string, m *models.QueuedMutation) (done bool, err error) {
	now := o.opts.Now()
	if m.Stale(now, o.opts.MaxAge) {
		staleErr := &common.APIError{
			Code:    common.CodeMutationStale,
			Message: "mutation expired before it could be synced",
		}
		o.remove(scope, m, models.MutationFailedTerminal, staleErr)
		return true, staleErr
	}

	reg, ok := o.registry.Resolve(m.Scope, m.Key)
	if !ok {
		missing := &common.APIError{
			Code:    common.CodeUnknownError,
			Message: fmt.Sprintf("no executor registered for %s/%s", m.Scope, m.Key),
		}
		o.remove(scope, m, models.MutationFailedTerminal, missing)
		return true, missing
	}

	for {
		m.State = models.MutationExecuting
		execErr := reg.Execute(ctx, m)
		if execErr == nil {
			o.remove(scope, m, models.MutationSucceeded, nil)
			if o.invalidator != nil && reg.Invalidates != nil {
				for _, prefix := range reg.Invalidates(m) {
					o.invalidator.Invalidate(prefix)
				}
			}
			return true, nil
		}

		// A connection drop pauses replayable mutations instead of
		// burning retries against a dead link.
		if common.CodeOf(execErr) == common.CodeNetworkError && !m.RequiresNetwork && !o.monitor.IsOnline() {
			m.State = models.MutationQueued
			m.LastError = execErr.Error()
			return false, nil
		}

		if !common.IsRetryable(execErr) {
			o.remove(scope, m, models.MutationFailedTerminal, execErr)
			return true, execErr
		}

		m.RetryCount++
		if m.RetryCount > m.MaxRetries {
			exhausted := &common.APIError{
				Code:    common.CodeMutationRetryExhausted,
				Message: fmt.Sprintf("gave up after %d retries: %s", m.MaxRetries, execErr),
			}
			o.remove(scope, m, models.MutationFailedTerminal, exhausted)
			return true, exhausted
		}
		m.State = models.MutationFailedRetry
		m.LastError = execErr.Error()

		select {
		case <-time.After(o.backoff(m.RetryCount)):
		case <-ctx.Done():
			m.State = models.MutationQueued
			return false, nil
		}
	}
}

// remove pops the mutation from its queue, records the final state, and
// notifies the sync listener.
func (o *Outbox) remove(scope string, m *models.QueuedMutation, state models.MutationState, cause error) {
	m.State = state
	if cause != nil {
		m.LastError = cause.Error()
	}

	o.mu.Lock()
	q := o.queues[scope]
	for i, queued := range q {
		if queued.ID == m.ID {
			o.queues[scope] = append(q[:i], q[i+1:]...)
			break
		}
	}
	changed := o.onChange
	o.mu.Unlock()

	if changed != nil {
		changed()
	}
	o.notify(m, cause)
}

func (o *Outbox) notify(m *models.QueuedMutation, cause error) {
	o.mu.Lock()
	fn := o.onSynced
	o.mu.Unlock()
	if fn != nil {
		fn(*m, cause)
	}
}

func (o *Outbox) lane(scope string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.lanes[scope]
	if !ok {
		l = &sync.Mutex{}
		o.lanes[scope] = l
	}
	return l
}

// backoff is jitter-free exponential, capped.
func (o *Outbox) backoff(retry int) time.Duration {
	d := o.opts.RetryBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= o.opts.RetryCap {
			return o.opts.RetryCap
		}
	}
	if d > o.opts.RetryCap {
		return o.opts.RetryCap
	}
	return d
}
