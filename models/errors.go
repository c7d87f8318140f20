package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout       = "RESOLVE_TIMEOUT"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash  = "BROWSER_CRASH"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnsupported   = "UNSUPPORTED_URL"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotConfigured = "SERVER_NOT_CONFIGURED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ResolveError is the internal error type carrying an error code.
// A ResolveError always means the page could not be resolved; it is never
// used to signal "page loaded but contained no media".
type ResolveError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError creates a new ResolveError.
func NewResolveError(code, message string, err error) *ResolveError {
	return &ResolveError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ResolveError) ToDetail() *ErrorDetail {
	d := &ErrorDetail{Code: e.Code, Message: e.Message}
	if e.Err != nil {
		d.Detail = e.Err.Error()
	}
	return d
}
