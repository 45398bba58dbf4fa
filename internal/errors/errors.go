// Package errors defines the application error taxonomy. Every caller-visible
// failure is an *AppError carrying a stable code; the Is* predicates traverse
// wrapped chains so services can branch on category without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForeignKey indicates a foreign key constraint violation.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeInvalidState indicates an operation is not legal from the resource's current state.
	ErrCodeInvalidState ErrorCode = "invalid_state"
	// ErrCodeQueuePaused indicates an admission attempt was rejected because the queue is paused.
	ErrCodeQueuePaused ErrorCode = "queue_paused"
	// ErrCodeStorage indicates a blob store upload or download failure.
	ErrCodeStorage ErrorCode = "storage"
)

// AppError is a categorized error with a human-readable message, an optional
// field (for validation failures) and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Constructors, one pair per code: plain message and Printf-style variants.

func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

func NotFoundf(format string, args ...any) *AppError {
	return NotFound(fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

func Conflictf(format string, args ...any) *AppError {
	return Conflict(fmt.Sprintf(format, args...))
}

func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationField is Validation with the offending field attached.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

func ForeignKey(message string) *AppError {
	return &AppError{Code: ErrCodeForeignKey, Message: message}
}

func ForeignKeyf(format string, args ...any) *AppError {
	return ForeignKey(fmt.Sprintf(format, args...))
}

func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

func Internalf(format string, args ...any) *AppError {
	return Internal(fmt.Sprintf(format, args...))
}

func InvalidState(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidState, Message: message}
}

func InvalidStatef(format string, args ...any) *AppError {
	return InvalidState(fmt.Sprintf(format, args...))
}

func QueuePaused(message string) *AppError {
	return &AppError{Code: ErrCodeQueuePaused, Message: message}
}

// Storage wraps a blob store failure.
func Storage(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeStorage, Message: message, Cause: cause}
}

// Wrap attaches a code and message to an existing error. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// MessageTemplate defers message formatting until an error actually occurs.
type MessageTemplate struct {
	format string
	args   []any
}

// Messagef builds a template for WrapTemplate.
func Messagef(format string, args ...any) MessageTemplate {
	return MessageTemplate{format: format, args: args}
}

func (mt MessageTemplate) String() string {
	if len(mt.args) == 0 {
		return mt.format
	}
	return fmt.Sprintf(mt.format, mt.args...)
}

// WrapTemplate is Wrap with a preconstructed message template.
func WrapTemplate(err error, code ErrorCode, template MessageTemplate) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: template.String(), Cause: err}
}

// Wrapf is Wrap with Printf-style message formatting.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return WrapTemplate(err, code, Messagef(format, args...))
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Predicates, one per code. Each traverses the wrapped chain.

func IsNotFound(err error) bool     { return isCode(err, ErrCodeNotFound) }
func IsConflict(err error) bool     { return isCode(err, ErrCodeConflict) }
func IsValidation(err error) bool   { return isCode(err, ErrCodeValidation) }
func IsForeignKey(err error) bool   { return isCode(err, ErrCodeForeignKey) }
func IsInternal(err error) bool     { return isCode(err, ErrCodeInternal) }
func IsTimeout(err error) bool      { return isCode(err, ErrCodeTimeout) }
func IsCanceled(err error) bool     { return isCode(err, ErrCodeCanceled) }
func IsInvalidState(err error) bool { return isCode(err, ErrCodeInvalidState) }
func IsQueuePaused(err error) bool  { return isCode(err, ErrCodeQueuePaused) }
func IsStorage(err error) bool      { return isCode(err, ErrCodeStorage) }

// GetCode extracts the code from an error chain, or "" for non-AppErrors.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField extracts the field from an error chain, or "" when unset.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
