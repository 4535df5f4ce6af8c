// Package agent implements NatShell's ReAct-style Agent Loop: a state
// machine cycling REASONING -> GATE -> (AWAIT_CONFIRM | AWAIT_SUDO |
// EXECUTE) -> REASONING until the model stops requesting tool calls or
// the step budget is exhausted.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/convo"
	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/errkind"
	"github.com/Barent/natshell/internal/logging"
	"github.com/Barent/natshell/internal/safety"
	"github.com/Barent/natshell/internal/tools"
)

// SudoCredentialSetter matches internal/tools/shell.CredentialCache's Set
// method, kept as a narrow interface so this package need not import
// internal/tools/shell.
type SudoCredentialSetter interface {
	Set(password string)
}

// Loop drives one Conversation through the Agent Loop state machine. It is
// not safe for concurrent Run calls on the same Loop; a REPL drives one
// turn at a time.
type Loop struct {
	mu      sync.Mutex
	state   State
	history []Transition

	conv     *convo.Conversation
	ctxMgr   *convo.Manager
	engineM  *engine.Manager
	registry *tools.Registry
	classify *safety.Classifier

	confirmer    Confirmer
	sudoPrompter SudoPrompter
	sudoCache    SudoCredentialSetter
	events       EventSink

	maxSteps    int
	temperature float64
	maxTokens   int
	safetyMode  string
}

// NewLoop assembles a Loop from its collaborators. contextWindow drives the
// default step budget unless cfg.Agent.MaxSteps overrides it.
func NewLoop(
	conv *convo.Conversation,
	ctxMgr *convo.Manager,
	engineM *engine.Manager,
	registry *tools.Registry,
	classifier *safety.Classifier,
	confirmer Confirmer,
	sudoPrompter SudoPrompter,
	sudoCache SudoCredentialSetter,
	events EventSink,
	cfg *config.Config,
	contextWindow int,
) *Loop {
	steps := cfg.Agent.MaxSteps
	if steps <= 0 {
		steps = StepBudget(contextWindow)
	}
	return &Loop{
		state:        StateIdle,
		conv:         conv,
		ctxMgr:       ctxMgr,
		engineM:      engineM,
		registry:     registry,
		classify:     classifier,
		confirmer:    confirmer,
		sudoPrompter: sudoPrompter,
		sudoCache:    sudoCache,
		events:       events,
		maxSteps:     steps,
		temperature:  cfg.Agent.Temperature,
		maxTokens:    cfg.Agent.MaxTokens,
		safetyMode:   cfg.Safety.Mode,
	}
}

func (l *Loop) transition(to State, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, Transition{From: l.state, To: to, Reason: reason})
	l.state = to
}

// State reports the loop's current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History returns a copy of the recorded transitions, for /history and
// debugging.
func (l *Loop) History() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transition, len(l.history))
	copy(out, l.history)
	return out
}

// ErrStepBudgetExhausted is returned when a turn runs out of steps before
// the model produces a final answer.
var ErrStepBudgetExhausted = errors.New("agent: step budget exhausted")

// Run drives one user turn to completion: appends userInput, then cycles
// REASONING/GATE/EXECUTE until the model stops calling tools, the step
// budget runs out, or ctx is cancelled. It returns the model's final
// natural-language reply.
func (l *Loop) Run(ctx context.Context, userInput string) (string, error) {
	l.engineM.ResetTurn()
	l.conv.Append(convo.NewUserMessage(userInput, time.Now()))

	if err := l.ctxMgr.CompactIfNeeded(ctx, l.maxTokens); err != nil {
		logging.AgentWarn("context compaction failed: %v", err)
	}

	for step := 0; step < l.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			l.transition(StateIdle, "context cancelled")
			return "", err
		}

		l.transition(StateReasoning, fmt.Sprintf("step %d", step))
		l.emit(Event{Kind: EventThinking})
		result, err := l.engineM.ChatCompletion(
			ctx,
			toEngineMessages(l.conv.Messages()),
			toEngineToolSpecs(l.registry.All()),
			l.temperature,
			l.maxTokens,
		)
		if err != nil {
			l.transition(StateIdle, "engine error")
			l.emitError(err)
			return "", err
		}
		if result.Warning != "" {
			l.emit(Event{Kind: EventError, ErrKind: "engine_warning", Message: result.Warning})
		}

		switch result.FinishReason {
		case engine.FinishCancelled:
			l.transition(StateIdle, "engine cancelled")
			l.emitError(context.Canceled)
			return "", context.Canceled

		case engine.FinishToolCalls:
			l.conv.Append(convo.NewAssistantMessage(result.Text, toConvoToolCalls(result.ToolCalls), time.Now()))
			l.transition(StateGate, fmt.Sprintf("%d tool calls", len(result.ToolCalls)))
			if err := l.runToolCallBatch(ctx, result.ToolCalls); err != nil {
				l.transition(StateIdle, "tool batch aborted")
				l.emitError(err)
				return "", err
			}
			// loop back to REASONING with tool results appended

		default: // stop, length, error
			l.conv.Append(convo.NewAssistantMessage(result.Text, nil, time.Now()))
			l.transition(StateIdle, "final answer")
			l.emit(Event{Kind: EventResponse, Text: result.Text})
			return result.Text, nil
		}
	}

	l.transition(StateIdle, "step budget exhausted")
	l.emitError(ErrStepBudgetExhausted)
	return "", ErrStepBudgetExhausted
}

// runToolCallBatch gates and executes every call in a model turn. Each
// call is classified and dispatched independently: a pending confirmation
// on one call does not block a sibling Safe call, but results are still
// appended to the conversation in the model's declared order, since this
// is a synchronous single-user REPL rather than a concurrent multi-agent
// runtime.
func (l *Loop) runToolCallBatch(ctx context.Context, calls []engine.ToolCall) error {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}
		output, toolErr := l.dispatchOne(ctx, call)
		result := formatToolOutput(output, toolErr)
		l.emit(Event{Kind: EventToolResult, ToolCall: call, Result: result})
		l.conv.Append(convo.NewToolMessage(call.ID, call.Name, result, time.Now()))
	}
	l.transition(StateReasoning, "batch complete")
	return nil
}

func formatToolOutput(output string, err error) string {
	if err == nil {
		return output
	}
	if output == "" {
		return fmt.Sprintf("error: %v", err)
	}
	return fmt.Sprintf("%s\nerror: %v", output, err)
}

// dispatchOne classifies and runs a single Tool Call, handling the
// Blocked/Confirm/Safe gate and the AWAIT_SUDO retry, and always returns a
// result to hand back to the model rather than propagating a fatal error
// (fatal engine/context errors are the caller's concern, not a tool's).
func (l *Loop) dispatchOne(ctx context.Context, call engine.ToolCall) (string, error) {
	verdict := l.classify.ClassifyTool(call.Name, call.Args)

	switch verdict.Risk {
	case safety.Blocked:
		logging.AgentWarn("tool %s blocked: %s", call.Name, verdict.Reason)
		l.emit(Event{Kind: EventBlocked, ToolCall: call})
		return "", errkind.NewSafetyBlockedError(verdict.Reason)

	case safety.Confirm:
		if l.safetyMode != "yolo" {
			l.transition(StateAwaitConfirm, verdict.Reason)
			l.emit(Event{Kind: EventConfirmNeeded, ToolCall: call})
			approved, err := l.confirm(ctx, call, verdict.Reason)
			if err != nil {
				return "", err
			}
			if !approved {
				l.transition(StateGate, "confirmation declined")
				return "", errkind.NewSafetyDeclinedError(verdict.Reason)
			}
			l.transition(StateGate, "confirmation approved")
		}
		l.emit(Event{Kind: EventExecuting, ToolCall: call})
		return l.execute(ctx, call)

	default: // Safe
		l.emit(Event{Kind: EventExecuting, ToolCall: call})
		return l.execute(ctx, call)
	}
}

func (l *Loop) confirm(ctx context.Context, call engine.ToolCall, reason string) (bool, error) {
	if l.confirmer == nil {
		return false, errkind.NewInternalError("tool call requires confirmation but no Confirmer is configured", nil)
	}
	return l.confirmer.Confirm(ctx, PendingConfirm{ToolName: call.Name, Args: call.Args, Reason: reason})
}

// execute runs the tool once, retrying exactly once via AWAIT_SUDO if the
// failure is a sudo authentication refusal.
func (l *Loop) execute(ctx context.Context, call engine.ToolCall) (string, error) {
	l.transition(StateExecute, call.Name)
	result, err := l.registry.Execute(ctx, call.Name, call.Args)
	if result == nil {
		return "", err
	}

	var secErr *errkind.SecurityRefusedError
	if errors.As(err, &secErr) {
		retried, retryErr := l.retryAfterSudoPrompt(ctx, call)
		if retryErr != nil {
			return result.Result, retryErr
		}
		return retried.Result, retried.Error
	}

	return result.Result, err
}

func (l *Loop) retryAfterSudoPrompt(ctx context.Context, call engine.ToolCall) (*tools.ToolResult, error) {
	if l.sudoPrompter == nil || l.sudoCache == nil {
		return nil, errkind.NewSecurityRefusedError("sudo authentication failed and no sudo prompt is configured")
	}

	l.transition(StateAwaitSudo, "sudo authentication failed, prompting for retry")
	password, ok, err := l.sudoPrompter.PromptSudo(ctx, call.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		l.transition(StateGate, "sudo prompt declined")
		return nil, errkind.NewSecurityRefusedError("sudo password not provided")
	}

	l.sudoCache.Set(password)
	l.transition(StateExecute, "retrying after sudo credential refresh")
	return l.registry.Execute(ctx, call.Name, call.Args)
}
