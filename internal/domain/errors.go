package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeProvider        = "PROVIDER_ERROR"
	ErrCodeTenantIsolation = "TENANT_ISOLATION_VIOLATION"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrContentTooShort      = NewDomainError(ErrCodeValidation, "content is shorter than the minimum ingestible length")
	ErrInvalidContentType   = NewDomainError(ErrCodeValidation, "invalid content type")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrKnowledgeItemNotFound = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrChunkNotFound         = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")
)

// Provider errors
var (
	ErrProviderUnavailable = NewDomainError(ErrCodeProvider, "embedding provider unavailable")
	ErrDimensionMismatch   = NewDomainError(ErrCodeProvider, "embedding dimension does not match the stored vector space")
)

// ErrTenantIsolation indicates a similarity search returned a candidate
// outside the requested scope. This is a fatal invariant violation, never
// a recoverable condition.
var ErrTenantIsolation = NewDomainError(ErrCodeTenantIsolation, "search candidate belongs to a different tenant")
