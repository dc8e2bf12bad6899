package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes of the uniform taxonomy. Codes for HTTP failures with a
// response body that carries its own code use the server-supplied value;
// otherwise HTTPErrorCode derives one from the status.
const (
	CodeNetworkError           = "NETWORK_ERROR"
	CodeUnknownError           = "UNKNOWN_ERROR"
	CodeAuthExpired            = "AUTH_EXPIRED"
	CodeMutationStale          = "MUTATION_STALE"
	CodeMutationRetryExhausted = "MUTATION_RETRY_EXHAUSTED"
)

var (
	// Token lifecycle errors.
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrAuthExpired    = errors.New("session expired")

	// Credential store errors.
	ErrNoCredential = errors.New("no stored credential")
)

// APIError is the uniform error every classified transport outcome is mapped
// to. Status is zero when no response was received. Callers match with
// errors.As or compare Code.
type APIError struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is match classified errors against the package sentinels,
// e.g. errors.Is(err, ErrAuthExpired) for any AUTH_EXPIRED APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrAuthExpired && e.Code == CodeAuthExpired
}

// HTTPErrorCode derives a taxonomy code from an HTTP status when the response
// body did not supply one.
func HTTPErrorCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// NewNetworkError builds the APIError used for requests that were sent but
// received no response.
func NewNetworkError(msg string) *APIError {
	if msg == "" {
		msg = "Network request failed. Please check your connection."
	}
	return &APIError{Code: CodeNetworkError, Message: msg}
}

// CodeOf extracts the taxonomy code from err, or empty if err is not a
// classified APIError.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// StatusOf extracts the HTTP status from err, or zero if there was none.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsRetryable reports whether err is a transient condition worth retrying:
// a network error (no response) or a server-side 5xx. Everything else,
// including 4xx and classification failures, is terminal.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == CodeNetworkError {
		return true
	}
	return apiErr.Status >= http.StatusInternalServerError && apiErr.Status <= 599
}
