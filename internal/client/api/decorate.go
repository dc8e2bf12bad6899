package api

import (
	"context"
	"errors"

	"github.com/datngoHD/white-label-app/internal/client/repositories/credentials"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

// Decorator attaches the Authorization and X-Tenant-ID headers to outbound
// requests. The credential read is best-effort: a store failure is logged
// and the request proceeds unauthenticated rather than blocking.
type Decorator struct {
	creds  credentials.Store
	tenant *TenantHolder
	log    logging.Logger
}

func NewDecorator(creds credentials.Store, tenant *TenantHolder, log logging.Logger) *Decorator {
	if log == nil {
		log = logging.Default()
	}
	return &Decorator{creds: creds, tenant: tenant, log: log}
}

// Decorate returns a decorated copy of req. It has no side effects beyond
// the returned descriptor.
func (d *Decorator) Decorate(ctx context.Context, req *Request) *Request {
	decorated := req.Clone()

	cred, err := d.creds.Get(ctx)
	switch {
	case err == nil && cred.AccessToken != "":
		decorated.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+cred.AccessToken)
	case err != nil && !errors.Is(err, common.ErrNoCredential):
		d.log.Error(ctx, "failed to read access token", "error", err)
	}

	if tenantID := d.tenant.Get(); tenantID != "" {
		decorated.Header.Set(common.TenantIDHeaderName, tenantID)
	}

	return decorated
}
