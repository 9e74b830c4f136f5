package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeNetwork covers transient transport failures, retried with backoff.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeNotFound means the remote resource does not exist. Sticky, never retried.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeSiteDown means the remote site is unreachable. Halts all acquisition.
	ErrorTypeSiteDown ErrorType = "site_down"
	// ErrorTypeValidation means malformed input to the store. Caller must fix input.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeFilesystem covers local disk failures. The item is skipped for the pass.
	ErrorTypeFilesystem ErrorType = "filesystem"
	// ErrorTypeParsing means a page loaded but its fields could not be extracted.
	ErrorTypeParsing ErrorType = "parsing"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates an error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates an error of the given type with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewHTTP creates an error carrying an HTTP status code
func NewHTTP(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeNotFound, ErrorTypeSiteDown, ErrorTypeValidation, ErrorTypeFilesystem, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// TypeFromStatusCode maps an HTTP status code to an error type
func TypeFromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 404 || statusCode == 410:
		return ErrorTypeNotFound
	case statusCode == 429 || statusCode >= 500:
		return ErrorTypeNetwork
	default:
		return ErrorTypeUnknown
	}
}
