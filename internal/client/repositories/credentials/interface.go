// Package credentials implements the credential store: an opaque, async
// home for the access/refresh token triple. Values are encrypted at rest.
package credentials

import (
	"context"

	"github.com/datngoHD/white-label-app/internal/client/models"
)

// Store owns the credential triple. Reads that find nothing return
// common.ErrNoCredential; callers treat any read failure as "no credential".
type Store interface {
	Get(ctx context.Context) (*models.Credential, error)
	Set(ctx context.Context, cred *models.Credential) error
	Clear(ctx context.Context) error
}
