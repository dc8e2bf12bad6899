// Package services contains the application services of the client: account
// lifecycle, profile reads and edits, and tenant configuration. Reads go
// through the query cache, writes through the mutation outbox.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/datngoHD/white-label-app/internal/client/api"
	"github.com/datngoHD/white-label-app/internal/client/cache"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/outbox"
	"github.com/datngoHD/white-label-app/internal/client/repositories/credentials"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

// RefreshPath is the token refresh endpoint. The request pipeline must know
// it so a 401 from a refresh attempt is never intercepted.
const RefreshPath = "/auth/refresh"

const (
	loginPath          = "/auth/login"
	registerPath       = "/auth/register"
	logoutPath         = "/auth/logout"
	changePasswordPath = "/auth/password"
	currentUserPath    = "/auth/me"

	mutationLogin    = "login"
	mutationRegister = "register"
)

// AuthService defines account lifecycle operations.
//
// Contract:
//   - Login / Register: authenticate against the server and persist the
//     credential triple. Both require a connection: offline they fail
//     immediately with a network error and are never queued.
//   - Logout: best-effort server call, then wipe all local state.
//   - ChangePassword: rotate the password for the signed-in account.
//   - CurrentUser: fetch the account behind the current credential.
//
// All methods honor context cancellation.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, email, password, displayName string) (*models.User, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	CurrentUser(ctx context.Context) (*models.User, error)
}

// authResponse is the body of every token-minting endpoint.
type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn,omitempty"`
	User         models.User `json:"user"`
}

type loginRequest struct {
	RequestID string `json:"requestId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type registerRequest struct {
	RequestID   string `json:"requestId"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type authService struct {
	client  *api.Client
	creds   credentials.Store
	tenant  *api.TenantHolder
	box     *outbox.Outbox
	queries *cache.QueryCache
	log     logging.Logger
	now     func() time.Time

	// users holds the account returned by an in-flight login/register,
	// keyed by the request ID embedded in the mutation payload.
	mu    sync.Mutex
	users map[string]*models.User
}

// NewAuthService builds the auth service and wires the token refresher and
// the auth-failure handler into the coordinator. Login and register run as
// connection-requiring mutations through the outbox; their executors are
// registered here.
func NewAuthService(
	client *api.Client,
	coordinator *api.Coordinator,
	creds credentials.Store,
	tenant *api.TenantHolder,
	box *outbox.Outbox,
	queries *cache.QueryCache,
	registry *outbox.Registry,
	log logging.Logger,
) AuthService {
	if log == nil {
		log = logging.Default()
	}
	s := &authService{
		client:  client,
		creds:   creds,
		tenant:  tenant,
		box:     box,
		queries: queries,
		log:     log,
		now:     time.Now,
		users:   make(map[string]*models.User),
	}

	coordinator.SetRefresher(s.refresh)
	coordinator.SetOnAuthFailure(s.handleAuthFailure)

	registry.Register(models.ScopeAuth, mutationLogin, outbox.Registration{Execute: s.executeLogin})
	registry.Register(models.ScopeAuth, mutationRegister, outbox.Registration{Execute: s.executeRegister})

	return s
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, error) {
	req := loginRequest{RequestID: uuid.NewString(), Email: email, Password: password}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	if err := s.box.Submit(ctx, models.ScopeAuth, mutationLogin, s.tenant.Get(), true, payload); err != nil {
		return nil, err
	}
	return s.takeUser(req.RequestID)
}

func (s *authService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	req := registerRequest{RequestID: uuid.NewString(), Email: email, Password: password, DisplayName: displayName}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode register request: %w", err)
	}

	if err := s.box.Submit(ctx, models.ScopeAuth, mutationRegister, s.tenant.Get(), true, payload); err != nil {
		return nil, err
	}
	return s.takeUser(req.RequestID)
}

// Logout calls the server best-effort, then wipes every trace of the
// session: credential, cached queries, and the pending queue. A network
// failure on the server call never blocks the local wipe.
func (s *authService) Logout(ctx context.Context) error {
	if err := s.client.PostJSON(ctx, logoutPath, nil, nil); err != nil {
		if common.CodeOf(err) != common.CodeNetworkError && !errors.Is(err, common.ErrAuthExpired) {
			s.log.Warn(ctx, "server logout failed", "error", err)
		}
	}
	return s.clearLocalState(ctx)
}

func (s *authService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}
	var resp authResponse
	if err := s.client.PostJSON(ctx, changePasswordPath, body, &resp); err != nil {
		return err
	}
	// A password change rotates the token pair.
	if resp.AccessToken != "" {
		if err := s.persistCredential(ctx, &resp); err != nil {
			return err
		}
	}
	return nil
}

func (s *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.client.GetJSON(ctx, currentUserPath, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *authService) executeLogin(ctx context.Context, m *models.QueuedMutation) error {
	var req loginRequest
	if err := json.Unmarshal(m.Payload, &req); err != nil {
		return fmt.Errorf("failed to decode login payload: %w", err)
	}

	var resp authResponse
	body := map[string]string{"email": req.Email, "password": req.Password}
	if err := s.client.PostJSON(ctx, loginPath, body, &resp); err != nil {
		return err
	}
	if err := s.persistCredential(ctx, &resp); err != nil {
		return err
	}
	s.putUser(req.RequestID, &resp.User)
	return nil
}

func (s *authService) executeRegister(ctx context.Context, m *models.QueuedMutation) error {
	var req registerRequest
	if err := json.Unmarshal(m.Payload, &req); err != nil {
		return fmt.Errorf("failed to decode register payload: %w", err)
	}

	var resp authResponse
	body := map[string]string{"email": req.Email, "password": req.Password, "displayName": req.DisplayName}
	if err := s.client.PostJSON(ctx, registerPath, body, &resp); err != nil {
		return err
	}
	if err := s.persistCredential(ctx, &resp); err != nil {
		return err
	}
	s.putUser(req.RequestID, &resp.User)
	return nil
}

// refresh exchanges the refresh token for a new pair. It is called only by
// the coordinator, which already serializes concurrent 401s.
func (s *authService) refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	var resp authResponse
	body := map[string]string{"refreshToken": refreshToken}
	if err := s.client.PostJSON(ctx, RefreshPath, body, &resp); err != nil {
		return nil, err
	}
	return s.buildCredential(&resp), nil
}

// handleAuthFailure runs when a refresh cycle fails terminally: the session
// is gone, so local state is wiped without a server call.
func (s *authService) handleAuthFailure(ctx context.Context) {
	if err := s.clearLocalState(ctx); err != nil {
		s.log.Error(ctx, "failed to clear local state after session expiry", "error", err)
	}
}

func (s *authService) clearLocalState(ctx context.Context) error {
	s.queries.Clear()
	s.box.Clear()
	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

func (s *authService) persistCredential(ctx context.Context, resp *authResponse) error {
	if err := s.creds.Set(ctx, s.buildCredential(resp)); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

// buildCredential derives the expiry from expiresIn when the server sends
// it, falling back to the access token's exp claim.
func (s *authService) buildCredential(resp *authResponse) *models.Credential {
	cred := &models.Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		cred.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		return cred
	}
	if exp, ok := tokenExpiry(resp.AccessToken); ok {
		cred.ExpiresAt = exp
	}
	return cred
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// client only needs the timestamp, the server remains the authority.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (s *authService) putUser(requestID string, user *models.User) {
	s.mu.Lock()
	s.users[requestID] = user
	s.mu.Unlock()
}

func (s *authService) takeUser(requestID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[requestID]
	if !ok {
		return nil, &common.APIError{Code: common.CodeUnknownError, Message: "authentication completed without a user"}
	}
	delete(s.users, requestID)
	return user, nil
}
