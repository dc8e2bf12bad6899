// Package app wires the client together: local database, request pipeline,
// query cache, mutation outbox, persistence, connectivity, and the domain
// services on top. It is the single entry point the UI talks to.
package app

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/datngoHD/white-label-app/internal/client/api"
	"github.com/datngoHD/white-label-app/internal/client/cache"
	"github.com/datngoHD/white-label-app/internal/client/config"
	"github.com/datngoHD/white-label-app/internal/client/connectivity"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/outbox"
	"github.com/datngoHD/white-label-app/internal/client/persist"
	"github.com/datngoHD/white-label-app/internal/client/repositories/blob"
	"github.com/datngoHD/white-label-app/internal/client/repositories/credentials"
	"github.com/datngoHD/white-label-app/internal/client/services"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/cryptox"
	"github.com/datngoHD/white-label-app/internal/logging"
)

const (
	healthPath = "/health"

	keySeedBlobKey = "credential-key-seed"
	keySaltBlobKey = "credential-key-salt"

	restoreTimeout = 5 * time.Second
	janitorPeriod  = time.Hour
)

// App owns every component of the client and exposes the surface the UI
// consumes.
type App struct {
	cfg *config.Config
	log logging.Logger

	db          *sql.DB
	monitor     *connectivity.Manager
	tenant      *api.TenantHolder
	transport   *api.HTTPTransport
	coordinator *api.Coordinator
	client      *api.Client
	queries     *cache.QueryCache
	registry    *outbox.Registry
	box         *outbox.Outbox
	adapter     *persist.Adapter
	creds       credentials.Store

	Auth    services.AuthService
	Profile services.ProfileService
	Tenant  services.TenantService

	cancel context.CancelFunc
}

// New builds the full client stack. Nothing runs until Bootstrap.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Default()
	}

	db, err := InitDatabase(ctx, cfg.DatabaseFile)
	if err != nil {
		return nil, err
	}

	blobStore := blob.NewSQLiteStore(db)
	key, err := bootstrapEncryptionKey(ctx, blobStore)
	if err != nil {
		db.Close()
		return nil, err
	}

	monitor := connectivity.NewManager(log, cfg.OfflineDebounce)
	tenant := api.NewTenantHolder(cfg.TenantID)
	creds := credentials.NewSQLiteStore(db, key)
	coordinator := api.NewCoordinator(creds, log)
	transport := api.NewHTTPTransport(cfg.BaseURL, cfg.RequestTimeout, log)
	client := api.NewClient(transport, api.NewDecorator(creds, tenant, log), coordinator, services.RefreshPath, log)

	queries := cache.NewQueryCache(monitor, log, cache.Options{
		StaleTime:  cfg.StaleTime,
		GCTime:     cfg.GCTime,
		MaxRetries: uint64(cfg.MaxRetries),
	})
	registry := outbox.NewRegistry()
	box := outbox.NewOutbox(monitor, registry, queries, log, outbox.Options{
		MaxRetries: cfg.MaxRetries,
		MaxAge:     cfg.MutationMaxAge,
		MaxQueue:   cfg.MaxQueueSize,
	})

	adapter := persist.NewAdapter(blobStore, persist.SourceFunc(func() persist.Payload {
		return persist.Payload{Cache: queries.Snapshot(), Mutations: box.Snapshot()}
	}), log, cfg.SaveThrottle)
	queries.SetOnChange(adapter.Schedule)
	box.SetOnChange(adapter.Schedule)

	a := &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		monitor:     monitor,
		tenant:      tenant,
		transport:   transport,
		coordinator: coordinator,
		client:      client,
		queries:     queries,
		registry:    registry,
		box:         box,
		adapter:     adapter,
		creds:       creds,
	}
	a.Auth = services.NewAuthService(client, coordinator, creds, tenant, box, queries, registry, log)
	a.Profile = services.NewProfileService(client, tenant, queries, box, registry, log)
	a.Tenant = services.NewTenantService(client, tenant, queries, log)

	return a, nil
}

// Bootstrap restores persisted state, subscribes replay and revalidation to
// connectivity transitions, and starts the background loops. Must run
// before the first read or write.
func (a *App) Bootstrap(ctx context.Context) error {
	restoreCtx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	payload, err := a.adapter.Restore(restoreCtx)
	if err != nil {
		return fmt.Errorf("failed to restore persisted state: %w", err)
	}
	if payload != nil {
		a.queries.Restore(payload.Cache)
		a.box.Restore(payload.Mutations)
		a.log.Info(ctx, "persisted state restored",
			"cacheEntries", len(payload.Cache), "pendingMutations", len(payload.Mutations))
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())
	a.cancel = cancelBg

	a.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if err := a.box.Replay(bgCtx); err != nil {
				a.log.Error(bgCtx, "mutation replay failed", "error", err)
			}
		}()
		a.queries.RevalidateTracked()
	})

	go a.queries.StartJanitor(bgCtx, janitorPeriod)
	go a.monitor.Watch(bgCtx, a.cfg.OnlineCheckInterval, a.probe)

	// Anything queued before the last shutdown syncs as soon as we know
	// the backend is reachable; if we already are, start now.
	if a.monitor.IsOnline() && a.box.PendingCount() > 0 {
		go func() {
			if err := a.box.Replay(bgCtx); err != nil {
				a.log.Error(bgCtx, "mutation replay failed", "error", err)
			}
		}()
	}
	return nil
}

// IsOnline reports the current connectivity state.
func (a *App) IsOnline() bool {
	return a.monitor.IsOnline()
}

// SetOnline overrides the connectivity state, e.g. from a platform
// reachability callback or the demo CLI.
func (a *App) SetOnline(online bool) {
	a.monitor.SetOnline(online)
}

// PendingMutationCount reports how many writes await sync.
func (a *App) PendingMutationCount() int {
	return a.box.PendingCount()
}

// TenantID returns the active tenant.
func (a *App) TenantID() string {
	return a.tenant.Get()
}

// SwitchTenant changes the active tenant. Cached reads are tenant-keyed, so
// nothing needs clearing; subsequent reads simply miss until fetched.
func (a *App) SwitchTenant(tenantID string) {
	a.tenant.Set(tenantID)
	a.log.Info(context.Background(), "tenant switched", "tenant", tenantID)
}

// Invalidate marks all cached reads under (domain, current tenant,
// qualifiers...) stale.
func (a *App) Invalidate(domain string, qualifiers ...string) {
	a.queries.Invalidate(models.NewKey(domain, a.tenant.Get(), qualifiers...))
}

// RefreshTenant forces revalidation of the tenant configuration.
func (a *App) RefreshTenant() {
	a.Tenant.Refresh()
}

// OnMutationSynced registers the sync outcome listener.
func (a *App) OnMutationSynced(fn func(m models.QueuedMutation, err error)) {
	a.box.SetOnSynced(fn)
}

// Close stops the background loops, flushes pending state, and closes the
// database.
func (a *App) Close(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.adapter.Close(ctx); err != nil {
		a.log.Error(ctx, "failed to flush state on shutdown", "error", err)
	}
	return a.db.Close()
}

// probe is the reachability check behind the connectivity watcher. It goes
// through the bare transport: no auth, no refresh, no classification.
func (a *App) probe(ctx context.Context) error {
	resp, err := a.transport.Do(ctx, &api.Request{Method: "GET", Path: healthPath})
	if err != nil {
		return err
	}
	if resp.Status >= 500 {
		return fmt.Errorf("backend unhealthy: status %d", resp.Status)
	}
	return nil
}

// bootstrapEncryptionKey derives the at-rest credential key from a random
// seed generated on first run. The seed lives next to the data it protects:
// this guards against casual inspection of the database file, not against
// an attacker with full device access.
func bootstrapEncryptionKey(ctx context.Context, store blob.Store) ([]byte, error) {
	seed, err := loadOrCreate(ctx, store, keySeedBlobKey, 32)
	if err != nil {
		return nil, err
	}
	salt, err := loadOrCreate(ctx, store, keySaltBlobKey, 16)
	if err != nil {
		return nil, err
	}
	return cryptox.DeriveKey(seed, salt), nil
}

func loadOrCreate(ctx context.Context, store blob.Store, key string, size int) ([]byte, error) {
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if found {
		raw, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s: %w", key, err)
		}
		return raw, nil
	}

	raw := common.GenerateRandByteArray(size)
	if err := store.Set(ctx, key, hex.EncodeToString(raw)); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}
	return raw, nil
}
