package api

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/common"
)

// scriptedTransport returns canned outcomes in order and records every
// request it saw.
type scriptedTransport struct {
	mu       sync.Mutex
	outcomes []outcome
	requests []*Request
}

type outcome struct {
	resp *Response
	err  error
}

func (s *scriptedTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.outcomes) == 0 {
		return &Response{Status: http.StatusOK}, nil
	}
	next := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return next.resp, next.err
}

func (s *scriptedTransport) seen() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

func newTestClient(t *testing.T, transport Transport, creds *fakeCredStore) (*Client, *Coordinator) {
	t.Helper()
	tenant := NewTenantHolder("acme")
	coordinator := NewCoordinator(creds, testLogger())
	client := NewClient(transport, NewDecorator(creds, tenant, testLogger()), coordinator, "/auth/refresh", testLogger())
	return client, coordinator
}

func TestClient_Do_Success(t *testing.T) {
	transport := &scriptedTransport{outcomes: []outcome{
		{resp: &Response{Status: http.StatusOK, Body: []byte(`{"name":"a"}`)}},
	}}
	creds := &fakeCredStore{cred: &models.Credential{AccessToken: "at", RefreshToken: "rt"}}
	client, _ := newTestClient(t, transport, creds)

	resp, err := client.Do(context.Background(), newRequest(http.MethodGet, "/profile"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	seen := transport.seen()
	require.Len(t, seen, 1)
	require.Equal(t, "Bearer at", seen[0].Header.Get(common.AuthorizationHeaderName))
	require.Equal(t, "acme", seen[0].Header.Get(common.TenantIDHeaderName))
}

func TestClient_Do_RefreshAndReplayOn401(t *testing.T) {
	transport := &scriptedTransport{outcomes: []outcome{
		{resp: &Response{Status: http.StatusUnauthorized}},
		{resp: &Response{Status: http.StatusOK, Body: []byte(`{"ok":true}`)}},
	}}
	creds := &fakeCredStore{cred: &models.Credential{AccessToken: "stale", RefreshToken: "rt"}}
	client, coordinator := newTestClient(t, transport, creds)

	coordinator.SetRefresher(func(ctx context.Context, refreshToken string) (*models.Credential, error) {
		require.Equal(t, "rt", refreshToken)
		return &models.Credential{AccessToken: "fresh", RefreshToken: "rt2"}, nil
	})

	resp, err := client.Do(context.Background(), newRequest(http.MethodGet, "/profile"))
	require.NoError(t, err, "a 401 resolved by refresh never surfaces")
	require.Equal(t, http.StatusOK, resp.Status)

	seen := transport.seen()
	require.Len(t, seen, 2)
	require.Equal(t, "Bearer stale", seen[0].Header.Get(common.AuthorizationHeaderName))
	require.Equal(t, "Bearer fresh", seen[1].Header.Get(common.AuthorizationHeaderName))
}

func TestClient_Do_RefreshEndpoint401NeverRecurses(t *testing.T) {
	transport := &scriptedTransport{outcomes: []outcome{
		{resp: &Response{Status: http.StatusUnauthorized}},
	}}
	creds := &fakeCredStore{cred: &models.Credential{AccessToken: "at", RefreshToken: "rt"}}
	client, coordinator := newTestClient(t, transport, creds)

	refreshCalled := false
	coordinator.SetRefresher(func(ctx context.Context, refreshToken string) (*models.Credential, error) {
		refreshCalled = true
		return nil, nil
	})

	_, err := client.Do(context.Background(), newRequest(http.MethodPost, "/auth/refresh"))
	require.Error(t, err)
	require.Equal(t, "HTTP_401", common.CodeOf(err))
	require.False(t, refreshCalled, "401 from the refresh endpoint must propagate directly")
	require.Len(t, transport.seen(), 1)
}

func TestClient_Do_RefreshFailureSurfacesAuthExpired(t *testing.T) {
	transport := &scriptedTransport{outcomes: []outcome{
		{resp: &Response{Status: http.StatusUnauthorized}},
	}}
	creds := &fakeCredStore{cred: &models.Credential{AccessToken: "at"}} // no refresh token
	client, _ := newTestClient(t, transport, creds)

	_, err := client.Do(context.Background(), newRequest(http.MethodGet, "/profile"))
	require.ErrorIs(t, err, common.ErrAuthExpired)
	require.Len(t, transport.seen(), 1, "no replay after a failed refresh")
}

func TestClient_GetJSON_DecodesBody(t *testing.T) {
	transport := &scriptedTransport{outcomes: []outcome{
		{resp: &Response{Status: http.StatusOK, Body: []byte(`{"displayName":"Ada"}`)}},
	}}
	creds := &fakeCredStore{cred: &models.Credential{AccessToken: "at"}}
	client, _ := newTestClient(t, transport, creds)

	var out struct {
		DisplayName string `json:"displayName"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/profile", &out))
	require.Equal(t, "Ada", out.DisplayName)
}

func TestClient_PostMultipart_SetsContentType(t *testing.T) {
	transport := &scriptedTransport{}
	creds := &fakeCredStore{cred: &models.Credential{AccessToken: "at"}}
	client, _ := newTestClient(t, transport, creds)

	err := client.PostMultipart(context.Background(), "/profile/avatar", "avatar", "a.jpg", []byte{0xFF, 0xD8}, nil)
	require.NoError(t, err)

	seen := transport.seen()
	require.Len(t, seen, 1)
	require.Contains(t, seen[0].Header.Get("Content-Type"), "multipart/form-data")
	require.NotEmpty(t, seen[0].Body)
}
