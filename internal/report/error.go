package report

import (
	"errors"
	"fmt"
)

// StageError is a pipeline failure bound to an exit code. It records the
// stage that raised it plus whatever identifiers make the failure
// reproducible from the message alone (a path, a plugin name, a
// revision).
type StageError struct {
	// Code is the exit code this failure maps to.
	Code Code

	// Stage names the pipeline stage that failed (e.g. "plugins").
	Stage string

	// Message is a human-readable description.
	Message string

	// Plugin identifies the plugin source, for synchronizer failures.
	Plugin string

	// Revision identifies the revision, for switch failures.
	Revision string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface. The rendered message leads with
// the contract name so log lines and terminal output stay greppable by
// code.
func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Plugin != "" && e.Revision != "" {
		msg = fmt.Sprintf("%s (plugin=%s, revision=%s)", msg, e.Plugin, e.Revision)
	} else if e.Plugin != "" {
		msg = fmt.Sprintf("%s (plugin=%s)", msg, e.Plugin)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a StageError with a formatted message.
func NewStageError(code Code, stage, format string, args ...any) *StageError {
	return &StageError{Code: code, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// WrapStageError creates a StageError wrapping an underlying cause.
func WrapStageError(code Code, stage string, err error, format string, args ...any) *StageError {
	return &StageError{Code: code, Stage: stage, Message: fmt.Sprintf(format, args...), Err: err}
}

// usageExitCode is returned for errors outside the taxonomy: flag parse
// failures and other usage errors raised before the pipeline starts.
const usageExitCode = Code(2)

// CodeOf extracts the exit code from an error. nil maps to CodeSuccess.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Code
	}
	return usageExitCode
}

// StageOf returns the failing stage name, or "" when the error carries
// none.
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
