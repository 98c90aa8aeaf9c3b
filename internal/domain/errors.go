package domain

import (
	"errors"
	"fmt"
)

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

// CodeOf returns the code of the first DomainError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeTranscodingFailure   = "TRANSCODING_FAILURE"
	ErrCodeChunkTooLarge        = "CHUNK_TOO_LARGE"
	ErrCodeTranscriptionFailure = "TRANSCRIPTION_FAILURE"
	ErrCodeEmbeddingFailure     = "EMBEDDING_FAILURE"
	ErrCodeCollection           = "COLLECTION_ERROR"
	ErrCodeVectorStore          = "VECTOR_STORE_ERROR"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidUserID     = NewDomainError(ErrCodeValidation, "user id is empty after sanitization")
	ErrMissingMeetingID  = NewDomainError(ErrCodeValidation, "meeting id is required")
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrAudioFileNotFound = NewDomainError(ErrCodeValidation, "audio file not found")
	ErrEmptyAudioFile    = NewDomainError(ErrCodeValidation, "audio file is empty")
	ErrAudioTooLong      = NewDomainError(ErrCodeValidation, "audio exceeds maximum duration")
	ErrAudioFileTooLarge = NewDomainError(ErrCodeValidation, "audio file exceeds maximum upload size")
)

// Pipeline errors
var (
	ErrDecoderUnavailable = NewDomainError(ErrCodeTranscodingFailure, "decoding tool is not available")
	ErrEmptyTranscript    = NewDomainError(ErrCodeTranscriptionFailure, "transcription resulted in empty text")
)

// NewValidationError returns a VALIDATION_ERROR with a custom message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}
