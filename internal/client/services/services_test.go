package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/datngoHD/white-label-app/internal/client/api"
	"github.com/datngoHD/white-label-app/internal/client/cache"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/outbox"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeMonitor struct {
	mu     sync.Mutex
	online bool
}

func (m *fakeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) Subscribe(fn func(bool)) func() { return func() {} }

func (m *fakeMonitor) set(online bool) {
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()
}

type fakeCredStore struct {
	mu   sync.Mutex
	cred *models.Credential
}

func (f *fakeCredStore) Get(ctx context.Context) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cred == nil {
		return nil, common.ErrNoCredential
	}
	c := *f.cred
	return &c, nil
}

func (f *fakeCredStore) Set(ctx context.Context, cred *models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *cred
	f.cred = &c
	return nil
}

func (f *fakeCredStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = nil
	return nil
}

func (f *fakeCredStore) current() *models.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred
}

// routeTransport dispatches to a handler and records every request.
type routeTransport struct {
	mu       sync.Mutex
	handler  func(req *api.Request) (*api.Response, error)
	requests []*api.Request
}

func (r *routeTransport) Do(ctx context.Context, req *api.Request) (*api.Response, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	handler := r.handler
	r.mu.Unlock()
	return handler(req)
}

func (r *routeTransport) count(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

func jsonResponse(status int, body any) (*api.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &api.Response{Status: status, Body: raw}, nil
}

// env is a fully wired client stack over a fake transport.
type env struct {
	transport *routeTransport
	monitor   *fakeMonitor
	creds     *fakeCredStore
	tenant    *api.TenantHolder
	registry  *outbox.Registry
	queries   *cache.QueryCache
	box       *outbox.Outbox
	auth      AuthService
	profile   ProfileService
	tenants   TenantService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := testLogger()
	transport := &routeTransport{handler: func(req *api.Request) (*api.Response, error) {
		return &api.Response{Status: http.StatusNotFound}, nil
	}}
	monitor := &fakeMonitor{online: true}
	creds := &fakeCredStore{}
	tenant := api.NewTenantHolder("acme")
	coordinator := api.NewCoordinator(creds, log)
	client := api.NewClient(transport, api.NewDecorator(creds, tenant, log), coordinator, "/auth/refresh", log)

	queries := cache.NewQueryCache(monitor, log, cache.Options{
		RetryBase: time.Millisecond,
		RetryCap:  4 * time.Millisecond,
	})
	registry := outbox.NewRegistry()
	box := outbox.NewOutbox(monitor, registry, queries, log, outbox.Options{
		RetryBase: time.Millisecond,
		RetryCap:  4 * time.Millisecond,
	})

	return &env{
		transport: transport,
		monitor:   monitor,
		creds:     creds,
		tenant:    tenant,
		registry:  registry,
		queries:   queries,
		box:       box,
		auth:      NewAuthService(client, coordinator, creds, tenant, box, queries, registry, log),
		profile:   NewProfileService(client, tenant, queries, box, registry, log),
		tenants:   NewTenantService(client, tenant, queries, log),
	}
}

func (e *env) route(fn func(req *api.Request) (*api.Response, error)) {
	e.transport.mu.Lock()
	e.transport.handler = fn
	e.transport.mu.Unlock()
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestAuthService_LoginPersistsCredentialAndReturnsUser(t *testing.T) {
	e := newEnv(t)
	e.route(func(req *api.Request) (*api.Response, error) {
		require.Equal(t, "/auth/login", req.Path)
		require.Equal(t, "acme", req.Header.Get(common.TenantIDHeaderName))
		return jsonResponse(http.StatusOK, authResponse{
			AccessToken:  "at1",
			RefreshToken: "rt1",
			ExpiresIn:    3600,
			User:         models.User{ID: "u1", Email: "ada@example.com", DisplayName: "Ada"},
		})
	})

	user, err := e.auth.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)

	cred := e.creds.current()
	require.NotNil(t, cred)
	require.Equal(t, "at1", cred.AccessToken)
	require.Equal(t, "rt1", cred.RefreshToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, time.Minute)
}

func TestAuthService_LoginExpiryFallsBackToTokenClaim(t *testing.T) {
	e := newEnv(t)
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	e.route(func(req *api.Request) (*api.Response, error) {
		return jsonResponse(http.StatusOK, authResponse{
			AccessToken:  signedToken(t, exp),
			RefreshToken: "rt1",
			User:         models.User{ID: "u1"},
		})
	})

	_, err := e.auth.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	require.True(t, e.creds.current().ExpiresAt.Equal(exp))
}

func TestAuthService_LoginOfflineFailsImmediately(t *testing.T) {
	e := newEnv(t)
	e.monitor.set(false)

	_, err := e.auth.Login(context.Background(), "ada@example.com", "pw")
	require.Error(t, err)
	require.Equal(t, common.CodeNetworkError, common.CodeOf(err))
	require.Zero(t, e.box.PendingCount(), "login is never queued")
	require.Zero(t, e.transport.count(http.MethodPost, "/auth/login"))
}

func TestAuthService_BadCredentialsSurfaceServerError(t *testing.T) {
	e := newEnv(t)
	e.route(func(req *api.Request) (*api.Response, error) {
		if req.Path == "/auth/login" {
			return jsonResponse(http.StatusForbidden, map[string]string{
				"code": "INVALID_CREDENTIALS", "message": "wrong email or password",
			})
		}
		return &api.Response{Status: http.StatusNotFound}, nil
	})

	_, err := e.auth.Login(context.Background(), "ada@example.com", "nope")
	require.Error(t, err)
	require.Equal(t, "INVALID_CREDENTIALS", common.CodeOf(err))
	require.Nil(t, e.creds.current())
}

func TestAuthService_ExpiredTokenRefreshedTransparently(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.creds.Set(context.Background(), &models.Credential{AccessToken: "stale", RefreshToken: "rt1"}))

	e.route(func(req *api.Request) (*api.Response, error) {
		switch {
		case req.Path == "/auth/refresh":
			return jsonResponse(http.StatusOK, authResponse{
				AccessToken: "fresh", RefreshToken: "rt2", ExpiresIn: 3600,
			})
		case req.Header.Get(common.AuthorizationHeaderName) == common.BearerPrefix+"stale":
			return &api.Response{Status: http.StatusUnauthorized}, nil
		default:
			return jsonResponse(http.StatusOK, models.User{ID: "u1", Email: "ada@example.com"})
		}
	})

	user, err := e.auth.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "fresh", e.creds.current().AccessToken)
	require.Equal(t, "rt2", e.creds.current().RefreshToken)
}

func TestAuthService_FailedRefreshEndsSession(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.creds.Set(context.Background(), &models.Credential{AccessToken: "stale", RefreshToken: "dead"}))

	e.route(func(req *api.Request) (*api.Response, error) {
		if req.Path == "/auth/refresh" {
			return jsonResponse(http.StatusUnauthorized, map[string]string{
				"code": "INVALID_REFRESH_TOKEN", "message": "refresh token revoked",
			})
		}
		return &api.Response{Status: http.StatusUnauthorized}, nil
	})

	_, err := e.auth.CurrentUser(context.Background())
	require.ErrorIs(t, err, common.ErrAuthExpired)
	require.Nil(t, e.creds.current(), "session wiped after a failed refresh")
}

func TestAuthService_LogoutClearsEverything(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.creds.Set(context.Background(), &models.Credential{AccessToken: "at", RefreshToken: "rt"}))

	e.route(func(req *api.Request) (*api.Response, error) {
		if req.Path == profilePath {
			return jsonResponse(http.StatusOK, models.Profile{ID: "u1", DisplayName: "Ada"})
		}
		return jsonResponse(http.StatusOK, map[string]any{})
	})

	_, err := e.profile.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, e.queries.Len())

	e.monitor.set(false)
	name := "Грейс"
	require.NoError(t, e.profile.Update(context.Background(), models.ProfileUpdate{DisplayName: &name}))
	require.Equal(t, 1, e.box.PendingCount())
	e.monitor.set(true)

	require.NoError(t, e.auth.Logout(context.Background()))
	require.Equal(t, 1, e.transport.count(http.MethodPost, logoutPath))
	require.Nil(t, e.creds.current())
	require.Zero(t, e.queries.Len())
	require.Zero(t, e.box.PendingCount())
}

func TestProfileService_GetServesFromCache(t *testing.T) {
	e := newEnv(t)
	e.route(func(req *api.Request) (*api.Response, error) {
		return jsonResponse(http.StatusOK, models.Profile{ID: "u1", DisplayName: "Ada"})
	})

	first, err := e.profile.Get(context.Background())
	require.NoError(t, err)
	second, err := e.profile.Get(context.Background())
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, e.transport.count(http.MethodGet, profilePath))
}

func TestProfileService_OfflineEditQueuesThenSyncsOnReconnect(t *testing.T) {
	e := newEnv(t)

	var mu sync.Mutex
	displayName := "Ada"
	e.route(func(req *api.Request) (*api.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case req.Method == http.MethodGet && req.Path == profilePath:
			return jsonResponse(http.StatusOK, models.Profile{ID: "u1", DisplayName: displayName})
		case req.Method == http.MethodPatch && req.Path == profilePath:
			var update models.ProfileUpdate
			require.NoError(t, json.Unmarshal(req.Body, &update))
			displayName = *update.DisplayName
			return jsonResponse(http.StatusOK, map[string]any{})
		default:
			return &api.Response{Status: http.StatusNotFound}, nil
		}
	})

	profile, err := e.profile.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.DisplayName)

	e.monitor.set(false)
	newName := "Grace"
	require.NoError(t, e.profile.Update(context.Background(), models.ProfileUpdate{DisplayName: &newName}))
	require.Equal(t, 1, e.box.PendingCount())

	// Offline reads keep serving what is cached.
	profile, err = e.profile.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.DisplayName)

	e.monitor.set(true)
	require.NoError(t, e.box.Replay(context.Background()))
	require.Zero(t, e.box.PendingCount())

	// Replay invalidated the cached profile; the read catches up.
	require.Eventually(t, func() bool {
		p, err := e.profile.Get(context.Background())
		return err == nil && p.DisplayName == "Grace"
	}, time.Second, 5*time.Millisecond)
}

func TestProfileService_AvatarUploadRequiresConnection(t *testing.T) {
	e := newEnv(t)
	e.monitor.set(false)

	err := e.profile.UpdateAvatar(context.Background(), "a.jpg", []byte{0xFF, 0xD8})
	require.Error(t, err)
	require.Equal(t, common.CodeNetworkError, common.CodeOf(err))
	require.Zero(t, e.box.PendingCount())
}

func TestProfileService_PreferencesQueueOffline(t *testing.T) {
	e := newEnv(t)
	e.monitor.set(false)

	err := e.profile.UpdatePreferences(context.Background(), models.Preferences{Language: "lv", Theme: "dark"})
	require.NoError(t, err)
	require.Equal(t, 1, e.box.PendingCount())
}

func TestTenantService_ConfigCachedAndRefreshRevalidates(t *testing.T) {
	e := newEnv(t)
	e.route(func(req *api.Request) (*api.Response, error) {
		if req.Path == tenantConfigPath {
			return jsonResponse(http.StatusOK, models.TenantConfig{TenantID: "acme", Name: "Acme"})
		}
		return &api.Response{Status: http.StatusNotFound}, nil
	})

	config, err := e.tenants.Config(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Acme", config.Name)

	_, err = e.tenants.Config(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, e.transport.count(http.MethodGet, tenantConfigPath))

	e.tenants.Refresh()
	require.Eventually(t, func() bool {
		return e.transport.count(http.MethodGet, tenantConfigPath) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestTenantService_FeaturesPerTenant(t *testing.T) {
	e := newEnv(t)
	e.route(func(req *api.Request) (*api.Response, error) {
		tenantID := req.Header.Get(common.TenantIDHeaderName)
		return jsonResponse(http.StatusOK, models.FeatureFlags{"beta": tenantID == "acme"})
	})

	flags, err := e.tenants.Features(context.Background())
	require.NoError(t, err)
	require.True(t, flags["beta"])

	e.tenant.Set("globex")
	flags, err = e.tenants.Features(context.Background())
	require.NoError(t, err)
	require.False(t, flags["beta"], "switching tenants never reuses another tenant's entry")
	require.Equal(t, 2, e.transport.count(http.MethodGet, tenantFeaturesPath))

	e.tenant.Set("acme")
	flags, err = e.tenants.Features(context.Background())
	require.NoError(t, err)
	require.True(t, flags["beta"])
	require.Equal(t, 2, e.transport.count(http.MethodGet, tenantFeaturesPath), "the earlier tenant's entry is still cached")
}

func TestAuthService_ChangePasswordRotatesTokens(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.creds.Set(context.Background(), &models.Credential{AccessToken: "at", RefreshToken: "rt"}))

	e.route(func(req *api.Request) (*api.Response, error) {
		require.Equal(t, changePasswordPath, req.Path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(req.Body, &body))
		require.Equal(t, "old", body["currentPassword"])
		require.Equal(t, "new", body["newPassword"])
		return jsonResponse(http.StatusOK, authResponse{AccessToken: "at2", RefreshToken: "rt2", ExpiresIn: 3600})
	})

	require.NoError(t, e.auth.ChangePassword(context.Background(), "old", "new"))
	require.Equal(t, "at2", e.creds.current().AccessToken)
}
