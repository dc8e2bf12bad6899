package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/datngoHD/white-label-app/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an email, password, and display name and creates a
// new account. Registration needs a connection; offline it fails right away.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	displayName, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}

	user, err := a.auth.Register(ctx, email, string(password), displayName)
	if err != nil {
		fmt.Printf("Registration failed: %s\n", err)
		return err
	}

	a.userName = user.Email
	fmt.Printf("Welcome, %s!\n", user.DisplayName)
	return nil
}

// Login prompts for credentials and authenticates. Offline, login fails
// immediately with a network error; there is no offline fallback because the
// session token must come from the server.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.auth.Login(ctx, email, string(password))
	if err != nil {
		fmt.Printf("Login failed: %s\n", err)
		return err
	}

	a.userName = user.Email
	fmt.Printf("Welcome back, %s!\n", user.DisplayName)
	return nil
}

// Logout ends the session and wipes local state.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Printf("Logout failed: %s\n", err)
		return err
	}
	a.userName = ""
	fmt.Println("Logged out")
	return nil
}
