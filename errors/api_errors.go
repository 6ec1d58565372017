package errors

import "fmt"

// API error codes returned by the registration, admin and tool surfaces.
// The OAuth endpoints use the RFC 6749 vocabulary in oauth_errors.go instead.
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidCredentialFormat = "invalid_credential_format"
	CodeUnauthenticated         = "unauthenticated"
	CodeUpstreamError           = "upstream_error"
	CodeInternalError           = "internal_error"
)

// APIError is the structured error body every non-OAuth endpoint returns.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewInvalidRequestError(message string) *APIError {
	return &APIError{Code: CodeInvalidRequest, Message: message}
}

func NewInvalidCredentialFormat(message string) *APIError {
	return &APIError{Code: CodeInvalidCredentialFormat, Message: message}
}

// NewUnauthenticated carries a hint so a caller without credentials knows
// where to obtain one.
func NewUnauthenticated(message string) *APIError {
	return &APIError{
		Code:    CodeUnauthenticated,
		Message: message,
		Hint:    "register a Slack token at POST /register to obtain an API key",
	}
}

func NewUpstreamError(message string) *APIError {
	return &APIError{Code: CodeUpstreamError, Message: message}
}

func NewInternalError(message string) *APIError {
	return &APIError{Code: CodeInternalError, Message: message}
}
