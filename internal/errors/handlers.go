// Package errors/handlers provides interface-specific error handling implementations.
//
// ERROR FLOW:
// 1. Core or storage code returns an AppError
// 2. The host (CLI or TUI) passes it to its handler
// 3. The handler logs it through zap and formats it for display
// 4. Debug-severity errors from the trigger path are logged, never shown
package errors

import (
	"fmt"

	"go.uber.org/zap"
)

// ErrorHandler provides interface-specific error handling
type ErrorHandler interface {
	HandleError(err error) error
	FormatError(err error) string
}

var (
	_ ErrorHandler = (*CLIErrorHandler)(nil)
	_ ErrorHandler = (*TUIErrorHandler)(nil)
)

// CLIErrorHandler handles errors for CLI interface
type CLIErrorHandler struct {
	Verbose bool
	logger  *zap.Logger
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler(logger *zap.Logger, verbose bool) *CLIErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CLIErrorHandler{
		Verbose: verbose,
		logger:  logger,
	}
}

// HandleError handles errors for CLI interface
func (h *CLIErrorHandler) HandleError(err error) error {
	if err == nil {
		return nil
	}
	appErr := GetAppError(err)

	if h.Verbose {
		fields := []zap.Field{
			zap.String("code", string(appErr.Code)),
			zap.String("severity", string(appErr.Severity)),
		}
		if appErr.Cause != nil {
			fields = append(fields, zap.NamedError("cause", appErr.Cause))
		}
		h.logger.Debug(appErr.Message, fields...)
	}

	return fmt.Errorf("%s", h.FormatError(appErr))
}

// FormatError formats an error for CLI display
func (h *CLIErrorHandler) FormatError(err error) string {
	appErr := GetAppError(err)

	message := appErr.Message
	if appErr.Details != "" {
		message = fmt.Sprintf("%s (%s)", message, appErr.Details)
	}
	if h.Verbose && appErr.Cause != nil {
		message = fmt.Sprintf("%s: %v", message, appErr.Cause)
	}

	switch appErr.Severity {
	case SeverityCritical:
		return fmt.Sprintf("❌ CRITICAL: %s", message)
	case SeverityError:
		return fmt.Sprintf("❌ ERROR: %s", message)
	case SeverityWarning:
		return fmt.Sprintf("⚠️  WARNING: %s", message)
	case SeverityInfo, SeverityDebug:
		return fmt.Sprintf("ℹ️  INFO: %s", message)
	default:
		return fmt.Sprintf("❌ %s", message)
	}
}

// TUIErrorHandler handles errors for TUI interface
type TUIErrorHandler struct {
	ShowDetails bool
	logger      *zap.Logger
}

// NewTUIErrorHandler creates a new TUI error handler
func NewTUIErrorHandler(logger *zap.Logger, showDetails bool) *TUIErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TUIErrorHandler{
		ShowDetails: showDetails,
		logger:      logger,
	}
}

// HandleError logs the error to the TUI log file. It returns nil for
// trigger-path errors so callers can skip the status line.
func (h *TUIErrorHandler) HandleError(err error) error {
	if err == nil {
		return nil
	}
	appErr := GetAppError(err)

	fields := []zap.Field{
		zap.String("code", string(appErr.Code)),
		zap.String("category", string(appErr.Category)),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", appErr.Cause))
	}
	if len(appErr.Context) > 0 {
		fields = append(fields, zap.Any("context", appErr.Context))
	}

	if appErr.Silent() {
		h.logger.Debug(appErr.Message, fields...)
		return nil
	}
	h.logger.Warn(appErr.Message, fields...)
	return appErr
}

// FormatError formats an error for TUI display
func (h *TUIErrorHandler) FormatError(err error) string {
	appErr := GetAppError(err)

	message := appErr.Message
	if h.ShowDetails && appErr.Details != "" {
		message = fmt.Sprintf("%s\nDetails: %s", message, appErr.Details)
	}
	if h.ShowDetails && appErr.Cause != nil {
		message = fmt.Sprintf("%s\nCause: %v", message, appErr.Cause)
	}

	return message
}

// GetErrorStyle returns the status icon and status kind ("error",
// "warning" or "info") for the error's severity
func (h *TUIErrorHandler) GetErrorStyle(err error) (string, string) {
	appErr := GetAppError(err)

	switch appErr.Severity {
	case SeverityCritical:
		return "🔥", "error"
	case SeverityError:
		return "❌", "error"
	case SeverityWarning:
		return "⚠️", "warning"
	case SeverityInfo, SeverityDebug:
		return "ℹ️", "info"
	default:
		return "❌", "error"
	}
}
