package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datngoHD/white-label-app/internal/client/api"
	"github.com/datngoHD/white-label-app/internal/client/cache"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/outbox"
	"github.com/datngoHD/white-label-app/internal/logging"
)

const (
	profilePath            = "/profile"
	profileAvatarPath      = "/profile/avatar"
	profilePreferencesPath = "/profile/preferences"

	domainProfile = "profile"

	mutationUpdateProfile     = "update"
	mutationUpdateAvatar      = "updateAvatar"
	mutationUpdatePreferences = "updatePreferences"

	avatarFormField = "avatar"
)

// ProfileService reads and edits the signed-in user's profile. Reads serve
// from the cache; edits queue offline and replay on reconnect, except the
// avatar upload, which needs a connection.
type ProfileService interface {
	Get(ctx context.Context) (*models.Profile, error)
	Update(ctx context.Context, update models.ProfileUpdate) error
	UpdateAvatar(ctx context.Context, filename string, data []byte) error
	UpdatePreferences(ctx context.Context, prefs models.Preferences) error
}

type avatarPayload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type profileService struct {
	client  *api.Client
	tenant  *api.TenantHolder
	queries *cache.QueryCache
	box     *outbox.Outbox
	log     logging.Logger
}

// NewProfileService builds the profile service and registers its mutation
// executors, so profile edits queued before a restart replay after one.
func NewProfileService(
	client *api.Client,
	tenant *api.TenantHolder,
	queries *cache.QueryCache,
	box *outbox.Outbox,
	registry *outbox.Registry,
	log logging.Logger,
) ProfileService {
	if log == nil {
		log = logging.Default()
	}
	s := &profileService{client: client, tenant: tenant, queries: queries, box: box, log: log}

	invalidates := func(m *models.QueuedMutation) []models.Key {
		return []models.Key{models.NewKey(domainProfile, m.TenantID)}
	}
	registry.Register(models.ScopeProfile, mutationUpdateProfile, outbox.Registration{
		Execute:     s.executeUpdate,
		Invalidates: invalidates,
	})
	registry.Register(models.ScopeProfile, mutationUpdateAvatar, outbox.Registration{
		Execute:     s.executeUpdateAvatar,
		Invalidates: invalidates,
	})
	registry.Register(models.ScopeProfile, mutationUpdatePreferences, outbox.Registration{
		Execute:     s.executeUpdatePreferences,
		Invalidates: invalidates,
	})

	return s
}

func (s *profileService) Get(ctx context.Context) (*models.Profile, error) {
	key := models.NewKey(domainProfile, s.tenant.Get(), "me")
	raw, err := s.queries.Fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		var profile models.Profile
		if err := s.client.GetJSON(ctx, profilePath, &profile); err != nil {
			return nil, err
		}
		return json.Marshal(profile)
	})
	if err != nil {
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return &profile, nil
}

func (s *profileService) Update(ctx context.Context, update models.ProfileUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode profile update: %w", err)
	}
	return s.box.Submit(ctx, models.ScopeProfile, mutationUpdateProfile, s.tenant.Get(), false, payload)
}

func (s *profileService) UpdateAvatar(ctx context.Context, filename string, data []byte) error {
	payload, err := json.Marshal(avatarPayload{Filename: filename, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode avatar upload: %w", err)
	}
	return s.box.Submit(ctx, models.ScopeProfile, mutationUpdateAvatar, s.tenant.Get(), true, payload)
}

func (s *profileService) UpdatePreferences(ctx context.Context, prefs models.Preferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return s.box.Submit(ctx, models.ScopeProfile, mutationUpdatePreferences, s.tenant.Get(), false, payload)
}

func (s *profileService) executeUpdate(ctx context.Context, m *models.QueuedMutation) error {
	var update models.ProfileUpdate
	if err := json.Unmarshal(m.Payload, &update); err != nil {
		return fmt.Errorf("failed to decode profile update payload: %w", err)
	}
	return s.client.PatchJSON(ctx, profilePath, update, nil)
}

func (s *profileService) executeUpdateAvatar(ctx context.Context, m *models.QueuedMutation) error {
	var upload avatarPayload
	if err := json.Unmarshal(m.Payload, &upload); err != nil {
		return fmt.Errorf("failed to decode avatar payload: %w", err)
	}
	return s.client.PostMultipart(ctx, profileAvatarPath, avatarFormField, upload.Filename, upload.Data, nil)
}

func (s *profileService) executeUpdatePreferences(ctx context.Context, m *models.QueuedMutation) error {
	var prefs models.Preferences
	if err := json.Unmarshal(m.Payload, &prefs); err != nil {
		return fmt.Errorf("failed to decode preferences payload: %w", err)
	}
	return s.client.PatchJSON(ctx, profilePreferencesPath, prefs, nil)
}
