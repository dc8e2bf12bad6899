package cli

import (
	"context"
	"fmt"
	"sort"
)

func (a *App) showTenant(ctx context.Context) {
	config, err := a.tenants.Config(ctx)
	if err != nil {
		fmt.Printf("Could not load tenant config: %s\n", err)
		return
	}

	fmt.Printf("Tenant:        %s (%s)\n", config.Name, config.TenantID)
	fmt.Printf("Logo:          %s\n", config.LogoURL)
	fmt.Printf("Primary color: %s\n", config.PrimaryColor)
	fmt.Printf("Support:       %s\n", config.SupportEmail)
}

func (a *App) showTenantStatus(ctx context.Context) {
	status, err := a.tenants.Status(ctx)
	if err != nil {
		fmt.Printf("Could not load tenant status: %s\n", err)
		return
	}

	if status.Operational {
		fmt.Println("Status: operational")
	} else {
		fmt.Printf("Status: degraded: %s\n", status.Message)
	}
}

func (a *App) showFeatures(ctx context.Context) {
	flags, err := a.tenants.Features(ctx)
	if err != nil {
		fmt.Printf("Could not load feature flags: %s\n", err)
		return
	}

	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		state := "off"
		if flags[name] {
			state = "on"
		}
		fmt.Printf("%-24s %s\n", name, state)
	}
}
