// Package models defines the data shapes shared by the client core:
// the credential triple, tenant-scoped cache keys and entries, and queued
// mutations.
package models

import "time"

// expiryLatencyBuffer compensates for network latency when deciding whether
// an access token is still usable.
const expiryLatencyBuffer = 60 * time.Second

// Credential is the token triple owned by the credential store. It is only
// ever held in memory transiently, during login or a refresh cycle.
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is past (or within the latency
// buffer of) its expiry. A zero ExpiresAt means the expiry is unknown and the
// token is assumed usable until the server says otherwise.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-expiryLatencyBuffer))
}
