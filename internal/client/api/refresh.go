package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/repositories/credentials"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

// RefreshFunc exchanges a refresh token for a new credential triple. It is
// bound late (by the auth service) because the exchange itself goes through
// the request pipeline.
type RefreshFunc func(ctx context.Context, refreshToken string) (*models.Credential, error)

// refreshResult settles one parked waiter, exactly once.
type refreshResult struct {
	token string
	err   error
}

// Coordinator guarantees at most one token refresh in flight system-wide.
//
// The first caller that observes an authentication failure starts the
// refresh cycle; every further caller parks behind it until the cycle
// settles. On success the new credential is persisted and all waiters
// receive the new token. On failure all waiters receive the error, the
// registered auth-failure handler runs (logout + cache clearing), and the
// failure is terminal for the session: no automatic retry.
type Coordinator struct {
	creds credentials.Store
	log   logging.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
	refresh    RefreshFunc
	onFailure  func(ctx context.Context)
}

func NewCoordinator(creds credentials.Store, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Default()
	}
	return &Coordinator{creds: creds, log: log}
}

// SetRefresher binds the refresh call. Must be set before the first
// authentication failure is handled.
func (c *Coordinator) SetRefresher(fn RefreshFunc) {
	c.mu.Lock()
	c.refresh = fn
	c.mu.Unlock()
}

// SetOnAuthFailure registers the handler invoked after a terminal refresh
// failure, typically logout plus cache clearing.
func (c *Coordinator) SetOnAuthFailure(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onFailure = fn
	c.mu.Unlock()
}

// AwaitToken is called by the pipeline when a request received a 401.
// It returns a fresh access token to replay the request with, or a terminal
// common.ErrAuthExpired-matching error.
func (c *Coordinator) AwaitToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	refresh := c.refresh
	c.mu.Unlock()

	token, err := c.runRefresh(ctx, refresh)

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	onFailure := c.onFailure
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}

	if err != nil && onFailure != nil {
		onFailure(ctx)
	}
	return token, err
}

func (c *Coordinator) runRefresh(ctx context.Context, refresh RefreshFunc) (string, error) {
	if refresh == nil {
		return "", c.expired(ctx, fmt.Errorf("no refresher bound"))
	}

	cred, err := c.creds.Get(ctx)
	if err != nil || cred.RefreshToken == "" {
		// Missing refresh token is an immediate failure, no network call.
		return "", c.expired(ctx, common.ErrNoRefreshToken)
	}

	c.log.Info(ctx, "refreshing access token")
	refreshed, err := refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", c.expired(ctx, err)
	}

	if err := c.creds.Set(ctx, refreshed); err != nil {
		// The refreshed token is still usable for this session even when it
		// could not be persisted.
		c.log.Warn(ctx, "refreshed token could not be persisted", "error", err)
	}

	c.log.Info(ctx, "access token refreshed", "expires_at", refreshed.ExpiresAt)
	return refreshed.AccessToken, nil
}

func (c *Coordinator) expired(ctx context.Context, cause error) error {
	c.log.Warn(ctx, "token refresh failed, session expired", "error", cause)
	return &common.APIError{
		Code:    common.CodeAuthExpired,
		Message: fmt.Sprintf("session expired: %v", cause),
	}
}
