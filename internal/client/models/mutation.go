package models

import (
	"encoding/json"
	"time"
)

// MutationState is the lifecycle state of a submitted mutation.
type MutationState string

const (
	MutationSubmitted      MutationState = "SUBMITTED"
	MutationExecuting      MutationState = "EXECUTING"
	MutationQueued         MutationState = "QUEUED"
	MutationSucceeded      MutationState = "SUCCEEDED"
	MutationFailedRetry    MutationState = "FAILED_RETRY"
	MutationFailedTerminal MutationState = "FAILED_TERMINAL"
)

// Well-known mutation scopes. A scope is a serial execution lane: mutations
// sharing a scope run strictly in submission order.
const (
	ScopeAuth    = "auth"
	ScopeProfile = "profile"
)

// QueuedMutation is the durable record of a write operation. It carries no
// closure: after a restart the executor is re-resolved from (Scope, Key)
// through the registry.
type QueuedMutation struct {
	ID              string          `json:"id"`
	Key             string          `json:"mutationKey"`
	Scope           string          `json:"scope"`
	TenantID        string          `json:"tenantId"`
	Payload         json.RawMessage `json:"payload"`
	SubmittedAt     time.Time       `json:"submittedAt"`
	RetryCount      int             `json:"retryCount"`
	MaxRetries      int             `json:"maxRetries"`
	RequiresNetwork bool            `json:"requiresNetwork"`
	State           MutationState   `json:"state"`
	LastError       string          `json:"lastError,omitempty"`
}

// Stale reports whether the mutation exceeded the maximum queue age and must
// be dropped rather than replayed.
func (m *QueuedMutation) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(m.SubmittedAt) > maxAge
}
