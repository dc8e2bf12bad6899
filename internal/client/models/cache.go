package models

import (
	"encoding/json"
	"strings"
	"time"
)

// keySeparator joins key components into the canonical string form. The unit
// separator cannot appear in domains, tenant IDs, or qualifiers.
const keySeparator = "\x1f"

// Key identifies a cached read result. The tenant ID is always a component,
// so entries created under one tenant can never be read under another.
type Key struct {
	Domain     string   `json:"domain"`
	TenantID   string   `json:"tenantId"`
	Qualifiers []string `json:"qualifiers,omitempty"`
}

// NewKey builds a Key from a domain, tenant, and optional qualifiers.
func NewKey(domain, tenantID string, qualifiers ...string) Key {
	return Key{Domain: domain, TenantID: tenantID, Qualifiers: qualifiers}
}

// String returns the canonical map/storage form of the key.
func (k Key) String() string {
	parts := make([]string, 0, 2+len(k.Qualifiers))
	parts = append(parts, k.Domain, k.TenantID)
	parts = append(parts, k.Qualifiers...)
	return strings.Join(parts, keySeparator)
}

// Matches reports whether k falls under the given prefix: same domain and
// tenant, and every prefix qualifier equal position-wise. A prefix with no
// qualifiers matches every key of its (domain, tenant) pair.
func (k Key) Matches(prefix Key) bool {
	if k.Domain != prefix.Domain || k.TenantID != prefix.TenantID {
		return false
	}
	if len(prefix.Qualifiers) > len(k.Qualifiers) {
		return false
	}
	for i, q := range prefix.Qualifiers {
		if k.Qualifiers[i] != q {
			return false
		}
	}
	return true
}

// CacheEntry is one cached read result. Data is kept as raw JSON so entries
// serialize losslessly through the persistence adapter.
type CacheEntry struct {
	Key       Key             `json:"key"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
	StaleAt   time.Time       `json:"staleAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Fresh reports whether the entry can be served without revalidation.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.StaleAt)
}

// Expired reports whether the entry is past the garbage-collect horizon.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
