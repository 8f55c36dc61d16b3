package flux

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorType buckets remote failures the way the gateway reports them.
type ErrorType string

const (
	// ErrorTypeAPI covers gateway-side faults.
	ErrorTypeAPI ErrorType = "api_error"
	// ErrorTypeInvalidRequest means the parameters were rejected.
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication means the API key was missing or wrong.
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeRateLimit means too many requests hit the gateway.
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
)

// Error is the decoded gateway error envelope. Every non-2xx response
// surfaces as one of these.
type Error struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Param     string    `json:"param"`
	RequestID string    `json:"request_id"`

	// HTTPStatus is the status line the envelope arrived with.
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("flux: %s: %s (status=%d, request_id=%s)", e.Type, msg, e.HTTPStatus, e.RequestID)
}

// responseToError decodes the error envelope. Bodies that are not the
// expected JSON (proxies, load balancers) still produce a usable *Error so
// callers never have to look at raw bytes.
func responseToError(status int, body []byte) *Error {
	var envelope struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return &Error{
			Type:       ErrorTypeAPI,
			Message:    strings.TrimSpace(string(body)),
			HTTPStatus: status,
		}
	}
	apiErr := envelope.Error
	apiErr.HTTPStatus = status
	if apiErr.Type == "" {
		apiErr.Type = ErrorTypeAPI
	}
	return apiErr
}
