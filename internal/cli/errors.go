// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general or unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates the API could not be reached
	ExitNetworkError = 5
	// ExitCanceled indicates the user interrupted the request
	ExitCanceled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Message string
	Hint    string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewUsageError creates a UsageError; hint may be empty.
func NewUsageError(hint, format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...), Hint: hint}
}

// CommandError is a failed command with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ResponseError reports a chat request that ended in failure. The message
// has already been shown in the transcript.
type ResponseError struct {
	Message string
	Err     error
}

func (e *ResponseError) Error() string {
	return e.Message
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// =============================================================================
// REPORTING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}
	var validateErrs config.ValidateErrors
	if errors.As(err, &validateErrs) {
		return ExitConfigError
	}
	if errors.Is(err, context.Canceled) {
		return ExitCanceled
	}
	if errors.Is(err, cloud.ErrNotConfigured) || errors.Is(err, cloud.ErrAuthFailed) {
		return ExitAuthError
	}

	// A response that failed without an HTTP status never reached the API.
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Err != nil && cloud.StatusCode(respErr.Err) == 0 {
		return ExitNetworkError
	}
	return ExitGeneralError
}

// DisplayError prints err to w. A ResponseError is not repeated because the
// transcript already shows it.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	var usageErr *UsageError
	if errors.As(err, &usageErr) && usageErr.Hint != "" {
		fmt.Fprintf(w, "  %s\n", usageErr.Hint)
	}
}
