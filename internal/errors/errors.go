// Package errors provides unified error handling across fieldmark.
//
// SYSTEM ARCHITECTURE ROLE:
// This module is the error vocabulary shared by the marker core, the
// highlighter, the storage layer and the three hosts (CLI, TUI, watcher).
// Every failure that crosses a package boundary is an AppError so each host
// can decide how loudly to report it.
//
// KEY RESPONSIBILITIES:
// - Define error codes for configuration, scope, adapter and storage failures
// - Attach severity and category so hosts can filter noise
// - Keep the cause chain intact for errors.Is / errors.As
//
// TRIGGER-PATH ERRORS:
// Reconciliation runs on every keystroke or click. Errors raised on that
// path (ErrCodeScopeResolution, ErrCodeAdapterUnavailable) are informational:
// hosts log them at debug level and never surface them to the user. An
// ErrCodeInvalidPattern is surfaced once through the settings surface and
// reconciliation stays off until the pattern compiles.
//
// USAGE PATTERNS:
// - Create errors: ConfigurationError(), AdapterUnavailableError(), NotFoundError()
// - Wrap errors: Wrap() to add a code to an existing error
// - Check codes: HasCode() or GetAppError()
package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"

	// Configuration errors
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"
	ErrCodeInvalidSetting ErrorCode = "INVALID_SETTING"

	// Reconciliation errors
	ErrCodeScopeResolution    ErrorCode = "SCOPE_RESOLUTION"
	ErrCodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"

	// Service errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"

	// Resource errors
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Storage errors
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
	ErrCodeFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFileCorrupted  ErrorCode = "FILE_CORRUPTED"

	// Command errors
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"
	ErrCodeInvalidCommand  ErrorCode = "INVALID_COMMAND"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityDebug    ErrorSeverity = "debug"
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryService        ErrorCategory = "service"
	CategoryStorage        ErrorCategory = "storage"
	CategoryCommand        ErrorCategory = "command"
	CategorySystem         ErrorCategory = "system"
)

// AppError represents a standardized application error
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Category  ErrorCategory          `json:"category"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Silent reports whether the error belongs to the trigger path and should
// not be shown to the user
func (e *AppError) Silent() bool {
	return e.Severity == SeverityDebug
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	category, severity := categorizeError(code)
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severity,
		Category:  category,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with application error context
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := NewAppError(code, message)
	appErr.Cause = err
	return appErr
}

// categorizeError determines the category and severity based on error code
func categorizeError(code ErrorCode) (ErrorCategory, ErrorSeverity) {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidInput, ErrCodeMissingField, ErrCodeInvalidFormat:
		return CategoryValidation, SeverityWarning

	case ErrCodeInvalidPattern, ErrCodeInvalidSetting:
		return CategoryConfiguration, SeverityWarning

	case ErrCodeScopeResolution, ErrCodeAdapterUnavailable:
		return CategoryReconciliation, SeverityDebug

	case ErrCodeInternalError:
		return CategoryService, SeverityCritical
	case ErrCodeNotFound:
		return CategoryService, SeverityInfo
	case ErrCodeAlreadyExists:
		return CategoryService, SeverityWarning
	case ErrCodePermissionDenied:
		return CategoryService, SeverityError

	case ErrCodeStorageFailure, ErrCodeFileCorrupted:
		return CategoryStorage, SeverityError
	case ErrCodeFileNotFound:
		return CategoryStorage, SeverityInfo

	case ErrCodeCommandNotFound:
		return CategoryCommand, SeverityInfo
	case ErrCodeCommandFailed, ErrCodeInvalidCommand:
		return CategoryCommand, SeverityError

	default:
		return CategorySystem, SeverityError
	}
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error, or converts it to one
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrCodeInternalError, "Internal error occurred")
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Common error constructors for frequently used errors

func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message)
}

func InvalidInputError(field string, reason string) *AppError {
	return NewAppError(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason)).WithContext("field", field)
}

func MissingFieldError(field string) *AppError {
	return NewAppError(ErrCodeMissingField, fmt.Sprintf("%s is required", field)).WithContext("field", field)
}

// InvalidFormatError reports a value that is not in the shape an operation
// accepts, such as an unknown output format or a note path outside the vault
func InvalidFormatError(field string, value string, reason string) *AppError {
	return NewAppError(ErrCodeInvalidFormat, fmt.Sprintf("Invalid %s %q: %s", field, value, reason)).WithContext("field", field)
}

// ConfigurationError reports a statRegex that failed to compile
func ConfigurationError(expr string, err error) *AppError {
	return Wrap(err, ErrCodeInvalidPattern, fmt.Sprintf("Invalid stat pattern %q", expr))
}

func InvalidSettingError(key string, reason string) *AppError {
	return NewAppError(ErrCodeInvalidSetting, fmt.Sprintf("Invalid setting '%s': %s", key, reason))
}

func ScopeResolutionError(path string, reason string) *AppError {
	return NewAppError(ErrCodeScopeResolution, reason).WithContext("path", path)
}

func AdapterUnavailableError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeAdapterUnavailable, fmt.Sprintf("Editor unavailable: %s", operation))
}

func NotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func AlreadyExistsError(resource string) *AppError {
	return NewAppError(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternalError, message)
}

// StorageError wraps a filesystem failure. A cause that is fs.ErrPermission
// becomes ErrCodePermissionDenied.
func StorageError(operation string, err error) *AppError {
	if stderrors.Is(err, fs.ErrPermission) {
		return PermissionDeniedError(operation, err)
	}
	return Wrap(err, ErrCodeStorageFailure, fmt.Sprintf("Storage operation failed: %s", operation))
}

func PermissionDeniedError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePermissionDenied, fmt.Sprintf("Permission denied: %s", operation))
}

func CommandNotFoundError(command string) *AppError {
	return NewAppError(ErrCodeCommandNotFound, fmt.Sprintf("Command '%s' not found", command))
}

func InvalidCommandError(command string, reason string) *AppError {
	return NewAppError(ErrCodeInvalidCommand, fmt.Sprintf("Invalid command '%s': %s", command, reason))
}
