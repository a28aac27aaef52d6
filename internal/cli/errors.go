// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/quickr1/internal/config"
	"github.com/jeranaias/quickr1/internal/ollama"
	"github.com/jeranaias/quickr1/internal/ui/styles"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitCanceled indicates the user interrupted the command
	ExitCanceled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrUnsupportedFormat creates an error for unsupported formats.
func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: "supported formats: " + strings.Join(supported, ", "),
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

var errorLabel = lipgloss.NewStyle().Foreground(styles.DarkPalette.Rose).Bold(true)

// DisplayError writes err with a hint for common backend failures.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorLabel.Render("[ERROR]"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "        %s\n", hint)
	}
}

// errorHint suggests a fix for errors the user can act on.
func errorHint(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Is Ollama running? Start it with: ollama serve"
	case ollama.IsModelNotFound(err):
		return "Pull the model first: ollama pull <model>, or set backend.model"
	case ollama.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return "The model took too long. Raise backend.timeout_secs or try a smaller model."
	}
	return ""
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}
	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return ExitNotFoundError
	}
	var configErr config.ValidateErrors
	if errors.As(err, &configErr) {
		return ExitConfigError
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ExitCanceled
	case ollama.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case ollama.IsNotRunning(err):
		return ExitNetworkError
	case ollama.IsModelNotFound(err):
		return ExitNotFoundError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unknown command"),
		strings.Contains(msg, "unknown flag"),
		strings.Contains(msg, "accepts"),
		strings.Contains(msg, "requires at least"):
		return ExitUsageError
	case strings.Contains(msg, "config"):
		return ExitConfigError
	}
	return ExitGeneralError
}
