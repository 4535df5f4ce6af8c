package agent

import (
	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/errkind"
)

// EventKind identifies one entry in the Agent-event stream delivered to
// the front end.
type EventKind string

const (
	// EventThinking marks the start of a REASONING step, before the model
	// call is made.
	EventThinking EventKind = "thinking"
	// EventExecuting marks a Tool Call about to run, after it has cleared
	// the safety gate (Safe, or Confirm approved).
	EventExecuting EventKind = "executing"
	// EventToolResult carries one Tool Call's output back to the front end,
	// whether it succeeded, failed, or was blocked/declined.
	EventToolResult EventKind = "tool_result"
	// EventConfirmNeeded marks a Tool Call awaiting user approval.
	EventConfirmNeeded EventKind = "confirm_needed"
	// EventBlocked marks a Tool Call the classifier rejected outright; no
	// EventExecuting is ever emitted for the same call.
	EventBlocked EventKind = "blocked"
	// EventResponse carries the model's final natural-language reply.
	EventResponse EventKind = "response"
	// EventError marks a turn failure, or a non-fatal engine warning
	// (ErrKind "engine_warning") after which the turn continues.
	EventError EventKind = "error"
)

// Event is one entry in the Agent-event stream. Only the fields relevant
// to Kind are populated; the rest are zero.
type Event struct {
	Kind     EventKind
	ToolCall engine.ToolCall // Executing, ToolResult, ConfirmNeeded, Blocked
	Result   string          // ToolResult
	Text     string          // Response
	ErrKind  string          // Error
	Message  string          // Error
}

// EventSink receives Agent-event stream events in the order the Loop
// produces them. Implementations must not block the Loop for long;
// back-pressure is the front end's problem.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a plain function to an EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }

// emit is a no-op when the Loop has no configured sink, so EventSink
// remains optional the same way Confirmer/SudoPrompter are.
func (l *Loop) emit(e Event) {
	if l.events == nil {
		return
	}
	l.events.Emit(e)
}

func (l *Loop) emitError(err error) {
	l.emit(Event{Kind: EventError, ErrKind: errKindName(err), Message: err.Error()})
}

// errKindName names the error's kind for the front end, matching the
// errkind package's boundary types. Errors outside that taxonomy (context
// cancellation, step-budget exhaustion) report a generic kind.
func errKindName(err error) string {
	switch err.(type) {
	case *errkind.UserInputError:
		return "user_input"
	case *errkind.SafetyBlockedError:
		return "safety_blocked"
	case *errkind.SafetyDeclinedError:
		return "safety_declined"
	case *errkind.ToolExecutionError:
		return "tool_execution"
	case *errkind.ToolValidationError:
		return "tool_validation"
	case *errkind.EngineTransportError:
		return "engine_transport"
	case *errkind.EngineFatalError:
		return "engine_fatal"
	case *errkind.SecurityRefusedError:
		return "security_refused"
	case *errkind.InternalError:
		return "internal"
	default:
		return "error"
	}
}
