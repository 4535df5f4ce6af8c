// Package errkind classifies errors along the boundary the Agent Loop uses
// to decide whether a failure is reported back to the model as a tool
// result, or surfaced directly to the user and possibly fatal to the turn.
package errkind

import "fmt"

// UserInputError wraps a malformed slash command or CLI flag. Surfaced to
// the user; never shown to the model.
type UserInputError struct {
	Msg string
}

func (e *UserInputError) Error() string { return e.Msg }

func NewUserInputError(format string, args ...any) error {
	return &UserInputError{Msg: fmt.Sprintf(format, args...)}
}

// SafetyBlockedError means the classifier rejected a tool call outright.
// The Agent Loop appends this as a tool result and continues the turn.
type SafetyBlockedError struct {
	Reason string
}

func (e *SafetyBlockedError) Error() string { return fmt.Sprintf("blocked: %s", e.Reason) }

func NewSafetyBlockedError(reason string) error {
	return &SafetyBlockedError{Reason: reason}
}

// SafetyDeclinedError means the classifier required confirmation and the
// user (or front-end) declined it.
type SafetyDeclinedError struct {
	Reason string
}

func (e *SafetyDeclinedError) Error() string { return fmt.Sprintf("declined: %s", e.Reason) }

func NewSafetyDeclinedError(reason string) error {
	return &SafetyDeclinedError{Reason: reason}
}

// ToolExecutionError wraps a runtime failure inside a tool handler (process
// exit, filesystem error). Surfaced to the model as a tool result.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

func NewToolExecutionError(tool string, err error) error {
	return &ToolExecutionError{Tool: tool, Err: err}
}

// ToolValidationError wraps a malformed tool-call argument set. Surfaced to
// the model so it can retry with corrected arguments.
type ToolValidationError struct {
	Tool string
	Msg  string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %s: invalid arguments: %s", e.Tool, e.Msg)
}

func NewToolValidationError(tool, msg string) error {
	return &ToolValidationError{Tool: tool, Msg: msg}
}

// EngineTransportError wraps a recoverable inference-backend failure (HTTP
// timeout, connection refused). The Agent Loop may retry or fall back to
// another engine.
type EngineTransportError struct {
	Engine string
	Err    error
}

func (e *EngineTransportError) Error() string {
	return fmt.Sprintf("engine %s transport error: %v", e.Engine, e.Err)
}

func (e *EngineTransportError) Unwrap() error { return e.Err }

func NewEngineTransportError(engine string, err error) error {
	return &EngineTransportError{Engine: engine, Err: err}
}

// EngineFatalError wraps an unrecoverable inference-backend failure (both
// local and remote unavailable). Ends the turn.
type EngineFatalError struct {
	Msg string
}

func (e *EngineFatalError) Error() string { return e.Msg }

func NewEngineFatalError(format string, args ...any) error {
	return &EngineFatalError{Msg: fmt.Sprintf(format, args...)}
}

// SecurityRefusedError covers sudo authentication failures and other
// security-boundary refusals distinct from safety-classifier blocks.
type SecurityRefusedError struct {
	Msg string
}

func (e *SecurityRefusedError) Error() string { return e.Msg }

func NewSecurityRefusedError(format string, args ...any) error {
	return &SecurityRefusedError{Msg: fmt.Sprintf(format, args...)}
}

// InternalError covers bugs and invariant violations: a message appended
// where none was expected, a corrupt session file. Always surfaced to the
// user, never to the model.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("internal error: %s", e.Msg)
}

func (e *InternalError) Unwrap() error { return e.Err }

func NewInternalError(msg string, err error) error {
	return &InternalError{Msg: msg, Err: err}
}

// SurfaceToModel reports whether an error of this kind should be encoded
// into a Tool Result and handed back to the model, as opposed to aborting
// the turn and reporting to the user.
func SurfaceToModel(err error) bool {
	switch err.(type) {
	case *ToolExecutionError, *ToolValidationError, *SafetyBlockedError, *SafetyDeclinedError:
		return true
	default:
		return false
	}
}
