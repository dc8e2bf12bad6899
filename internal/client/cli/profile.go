package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datngoHD/white-label-app/internal/client/models"
)

func (a *App) showProfile(ctx context.Context) {
	profile, err := a.profile.Get(ctx)
	if err != nil {
		fmt.Printf("Could not load profile: %s\n", err)
		return
	}

	fmt.Printf("Email:        %s\n", profile.Email)
	fmt.Printf("Display name: %s\n", profile.DisplayName)
	if profile.AvatarURL != "" {
		fmt.Printf("Avatar:       %s\n", profile.AvatarURL)
	}
	fmt.Printf("Language:     %s\n", profile.Preferences.Language)
	fmt.Printf("Theme:        %s\n", profile.Preferences.Theme)
	fmt.Printf("Notifications: %v\n", profile.Preferences.NotificationsEnabled)
}

// editProfile queues a display-name change; offline it syncs later.
func (a *App) editProfile(ctx context.Context) {
	name, err := getSimpleText(a.reader, "New display name", os.Stdout)
	if err != nil || name == "" {
		return
	}

	if err := a.profile.Update(ctx, models.ProfileUpdate{DisplayName: &name}); err != nil {
		fmt.Printf("Update failed: %s\n", err)
		return
	}
	if a.core.IsOnline() {
		fmt.Println("Profile updated")
	} else {
		fmt.Println("Profile update queued; it will sync when back online")
	}
}

func (a *App) editPreferences(ctx context.Context) {
	language, err := getSimpleText(a.reader, "Language (e.g. en, lv)", os.Stdout)
	if err != nil {
		return
	}
	theme, err := getSimpleText(a.reader, "Theme (light/dark)", os.Stdout)
	if err != nil {
		return
	}
	notifications, err := getSimpleText(a.reader, "Notifications (y/n)", os.Stdout)
	if err != nil {
		return
	}

	prefs := models.Preferences{
		Language:             language,
		Theme:                theme,
		NotificationsEnabled: notifications == "y" || notifications == "yes",
	}
	if err := a.profile.UpdatePreferences(ctx, prefs); err != nil {
		fmt.Printf("Preferences update failed: %s\n", err)
		return
	}
	fmt.Println("Preferences saved")
}

// uploadAvatar reads an image file and uploads it. Needs a connection.
func (a *App) uploadAvatar(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: avatar <path-to-image>")
		return
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("Could not read %s: %s\n", args[0], err)
		return
	}

	if err := a.profile.UpdateAvatar(ctx, filepath.Base(args[0]), data); err != nil {
		fmt.Printf("Avatar upload failed: %s\n", err)
		return
	}
	fmt.Println("Avatar uploaded")
}
