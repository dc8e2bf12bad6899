package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

// errorEnvelope is the JSON error body the backend emits for non-2xx
// responses. All fields are optional.
type errorEnvelope struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Classify maps a transport outcome onto the uniform taxonomy:
//
//   - response received, non-2xx: code from the body or HTTP_<status>
//   - sent but no response: NETWORK_ERROR
//   - could not be sent at all: UNKNOWN_ERROR
//
// Every classified error is logged with method, URL, and status before it is
// returned.
func Classify(ctx context.Context, log logging.Logger, req *Request, resp *Response, err error) (*Response, error) {
	if err != nil {
		if errors.Is(err, ErrRequestNotSent) {
			apiErr := &common.APIError{
				Code:    common.CodeUnknownError,
				Message: "An unexpected error occurred.",
			}
			log.Error(ctx, "unknown request error",
				"method", req.Method, "url", req.Path, "error", err)
			return nil, apiErr
		}
		apiErr := common.NewNetworkError("")
		log.Error(ctx, "network error",
			"method", req.Method, "url", req.Path, "error", err)
		return nil, apiErr
	}

	if resp.Status >= 200 && resp.Status < 300 {
		return resp, nil
	}

	var envelope errorEnvelope
	_ = json.Unmarshal(resp.Body, &envelope)

	apiErr := &common.APIError{
		Code:    envelope.Code,
		Message: envelope.Message,
		Status:  resp.Status,
		Details: envelope.Details,
	}
	if apiErr.Code == "" {
		apiErr.Code = common.HTTPErrorCode(resp.Status)
	}
	if apiErr.Message == "" {
		apiErr.Message = defaultErrorMessage(resp.Status)
	}

	log.Error(ctx, "api error",
		"method", req.Method, "url", req.Path,
		"status", resp.Status, "code", apiErr.Code, "message", apiErr.Message)
	return nil, apiErr
}

func defaultErrorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request. Please check your input."
	case http.StatusUnauthorized:
		return "Authentication required. Please log in again."
	case http.StatusForbidden:
		return "You do not have permission to perform this action."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "A conflict occurred. Please try again."
	case http.StatusUnprocessableEntity:
		return "Validation failed. Please check your input."
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait and try again."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "Service temporarily unavailable. Please try again later."
	default:
		return "An error occurred. Please try again."
	}
}
