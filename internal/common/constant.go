// Package common contains shared constants and sentinel errors used across
// the client core components.
package common

const (
	// AuthorizationHeaderName carries the bearer access token on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// TenantIDHeaderName carries the active tenant identifier on outbound requests.
	TenantIDHeaderName = "X-Tenant-ID"

	// BearerPrefix is prepended to the access token in the Authorization header.
	BearerPrefix = "Bearer "
)
