// Package blob implements the persistence backing store: an opaque
// key-value home for serialized state blobs.
package blob

import "context"

// Store persists opaque string blobs by key. Get reports found=false for a
// missing key rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
