package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrPatientNotFound indicates the patient was not found
	ErrPatientNotFound = errors.New("patient not found")

	// ErrConsultationNotFound indicates the consultation was not found
	ErrConsultationNotFound = errors.New("consultation not found")

	// ErrStudyNotFound indicates the medical study was not found
	ErrStudyNotFound = errors.New("medical study not found")

	// ErrAttachmentNotFound indicates the attachment was not found
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrBackupNotFound indicates the backup archive was not found
	ErrBackupNotFound = errors.New("backup archive not found")

	// ErrContentMissing indicates an attachment record exists but its file is
	// absent from disk. Distinct from ErrNotFound: callers must treat it as an
	// integrity warning, not an empty result.
	ErrContentMissing = errors.New("attachment content missing from disk")

	// ErrExternalTool indicates the dump/restore subprocess exited non-zero
	// or timed out
	ErrExternalTool = errors.New("external tool failed")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound       = "NOT_FOUND"
	CodeDuplicateEntry = "DUPLICATE_ENTRY"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeContentMissing = "CONTENT_MISSING"
	CodeExternalTool   = "EXTERNAL_TOOL_FAILURE"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeInternalError  = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrConsultationNotFound) ||
		errors.Is(err, ErrStudyNotFound) ||
		errors.Is(err, ErrAttachmentNotFound) ||
		errors.Is(err, ErrBackupNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsContentMissing checks if the error is a content missing error
func IsContentMissing(err error) bool {
	return errors.Is(err, ErrContentMissing)
}

// IsExternalTool checks if the error is an external tool failure
func IsExternalTool(err error) bool {
	return errors.Is(err, ErrExternalTool)
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	switch {
	case IsContentMissing(err):
		return CodeContentMissing
	case IsNotFound(err):
		return CodeNotFound
	case IsDuplicateEntry(err):
		return CodeDuplicateEntry
	case IsInvalidInput(err):
		return CodeInvalidInput
	case IsExternalTool(err):
		return CodeExternalTool
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternalError
	}
}
