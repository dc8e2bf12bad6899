package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/datngoHD/white-label-app/internal/client/app"
	"github.com/datngoHD/white-label-app/internal/client/config"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/client/services"
	"github.com/datngoHD/white-label-app/internal/logging"
)

// App drives the REPL over the wired client stack. Commands go through the
// service interfaces so tests can swap in fakes.
type App struct {
	core     *app.App
	cfg      *config.Config
	log      logging.Logger
	reader   *bufio.Reader
	userName string

	auth    services.AuthService
	profile services.ProfileService
	tenants services.TenantService
}

// NewApp builds the full client and prepares the REPL.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Default()
	}
	core, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		core:    core,
		cfg:     cfg,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		auth:    core.Auth,
		profile: core.Profile,
		tenants: core.Tenant,
	}
	core.OnMutationSynced(a.reportSync)
	return a, nil
}

// Run bootstraps the stack and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	if err := a.core.Bootstrap(ctx); err != nil {
		return err
	}
	defer a.core.Close(ctx)

	a.Root(ctx)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

// reportSync prints the outcome of background mutation syncs so queued
// offline edits do not fail silently.
func (a *App) reportSync(m models.QueuedMutation, err error) {
	if err != nil {
		fmt.Printf("\nsync failed: %s/%s: %s\n", m.Scope, m.Key, err)
		return
	}
	if m.State == models.MutationSucceeded {
		a.log.Debug(context.Background(), "mutation synced", "scope", m.Scope, "key", m.Key)
	}
}
