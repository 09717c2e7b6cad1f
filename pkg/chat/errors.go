package chat

import "fmt"

// ErrorType represents the category of a chat client error.
type ErrorType string

const (
	// ErrorTypeMalformedResponse means the backend returned a 2xx response
	// whose body is missing an expected key (e.g. an error payload instead
	// of the chat completion shape).
	ErrorTypeMalformedResponse ErrorType = "malformed_response"

	// ErrorTypeTypeMismatch means a prompt did not match the declared
	// input schema type. Raised before any network call.
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"

	// ErrorTypeToolSelection means the model's tool choice did not match
	// any provided tool descriptor.
	ErrorTypeToolSelection ErrorType = "tool_selection"

	// ErrorTypeBackend means the backend rejected the request or the
	// transport failed. Never retried by this package.
	ErrorTypeBackend ErrorType = "backend_error"
)

// Error is a structured chat client error. RawBody carries the offending
// response body when one is available.
type Error struct {
	Type    ErrorType
	Message string
	RawBody []byte
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.RawBody) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.RawBody)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewMalformedResponseError creates an Error for a response body missing
// expected keys, attaching the raw body for the caller.
func NewMalformedResponseError(message string, rawBody []byte) *Error {
	return &Error{
		Type:    ErrorTypeMalformedResponse,
		Message: message,
		RawBody: rawBody,
	}
}

// NewTypeMismatchError creates an Error for a prompt that does not match
// the declared input schema type.
func NewTypeMismatchError(message string) *Error {
	return &Error{
		Type:    ErrorTypeTypeMismatch,
		Message: message,
	}
}

// NewToolSelectionError creates an Error for a tool choice with no
// matching descriptor.
func NewToolSelectionError(message string) *Error {
	return &Error{
		Type:    ErrorTypeToolSelection,
		Message: message,
	}
}

// NewBackendError creates an Error for backend or transport failures.
func NewBackendError(message string, rawBody []byte) *Error {
	return &Error{
		Type:    ErrorTypeBackend,
		Message: message,
		RawBody: rawBody,
	}
}
