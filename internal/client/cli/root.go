package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.core.IsOnline() {
		s += "online"
	} else {
		s += "offline"
	}
	if n := a.core.PendingMutationCount(); n > 0 {
		s += fmt.Sprintf(" %d pending", n)
	}
	return fmt.Sprintf("(%s @%s)", s, a.core.TenantID())
}

func (a *App) Root(ctx context.Context) {

	fmt.Println("Welcome (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("wl %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Println("Available commands: profile, edit, prefs, avatar, tenant, status, features, refresh, pending, online, offline, switch, logout, exit")
			} else {
				fmt.Println("Available commands: register, login, tenant, status, online, offline, exit")
			}

		case "register":
			a.Register(ctx)
		case "login":
			a.Login(ctx)
		case "logout":
			a.Logout(ctx)
		case "profile":
			a.showProfile(ctx)
		case "edit":
			a.editProfile(ctx)
		case "prefs":
			a.editPreferences(ctx)
		case "avatar":
			a.uploadAvatar(ctx, args)
		case "tenant":
			a.showTenant(ctx)
		case "status":
			a.showTenantStatus(ctx)
		case "features":
			a.showFeatures(ctx)
		case "refresh":
			a.core.RefreshTenant()
			fmt.Println("Tenant data refreshing...")
		case "pending":
			fmt.Printf("Pending mutations: %d\n", a.core.PendingMutationCount())
		case "online":
			a.core.SetOnline(true)
		case "offline":
			a.core.SetOnline(false)
			fmt.Println("Going offline (edits will queue)")
		case "switch":
			if len(args) == 0 {
				fmt.Println("Usage: switch <tenant-id>")
				continue
			}
			a.core.SwitchTenant(args[0])
			fmt.Printf("Active tenant: %s\n", args[0])
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}

}
