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
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeIndexNotFound       = "INDEX_NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeDimensionMismatch   = "DIMENSION_MISMATCH"
	ErrCodeUnknownField        = "UNKNOWN_FIELD"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeInconsistentState   = "INCONSISTENT_STATE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeInvalidOperation    = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingKBID        = NewDomainError(ErrCodeValidation, "kb_id is required")
	ErrMissingQuery       = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrInvalidSearchType  = NewDomainError(ErrCodeValidation, "unsupported search type")
	ErrInvalidStatus      = NewDomainError(ErrCodeValidation, "invalid status value")
	ErrInvalidOrderColumn = NewDomainError(ErrCodeValidation, "order column not allowed")
	ErrMissingFile        = NewDomainError(ErrCodeValidation, "file is required")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrIndexNotFound    = NewDomainError(ErrCodeIndexNotFound, "search index partition not found")
)

// Collaborator errors
var (
	ErrDimensionMismatch    = NewDomainError(ErrCodeDimensionMismatch, "embedding dimension mismatch")
	ErrUnknownIndexField    = NewDomainError(ErrCodeUnknownField, "unknown search index field")
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeUpstreamUnavailable, "embedding service unavailable")
	ErrStorageUnavailable   = NewDomainError(ErrCodeUpstreamUnavailable, "object storage unavailable")
)

// Operation errors
var (
	ErrStatusUnchanged      = NewDomainError(ErrCodeInvalidOperation, "status already set to requested value")
	ErrStatusModifyOnFailed = NewDomainError(ErrCodeInvalidOperation, "cannot modify status of a failed document")
	ErrChunkNotSynchronized = NewDomainError(ErrCodeInconsistentState, "chunk is not synchronized with the search index")
)
