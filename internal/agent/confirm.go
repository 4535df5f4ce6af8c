package agent

import "context"

// PendingConfirm describes one Tool Call awaiting user approval.
type PendingConfirm struct {
	ToolName string
	Args     map[string]any
	Reason   string
}

// Confirmer drives the AWAIT_CONFIRM state without the agent package
// depending on any particular front end (interactive REPL, headless mode).
type Confirmer interface {
	Confirm(ctx context.Context, req PendingConfirm) (approved bool, err error)
}

// SudoPrompter drives the AWAIT_SUDO state, collecting a sudo password (or
// equivalent) for a single privileged command retry.
type SudoPrompter interface {
	PromptSudo(ctx context.Context, toolName string) (password string, ok bool, err error)
}

// ConfirmerFunc adapts a plain function to a Confirmer.
type ConfirmerFunc func(ctx context.Context, req PendingConfirm) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, req PendingConfirm) (bool, error) {
	return f(ctx, req)
}

// SudoPrompterFunc adapts a plain function to a SudoPrompter.
type SudoPrompterFunc func(ctx context.Context, toolName string) (string, bool, error)

func (f SudoPrompterFunc) PromptSudo(ctx context.Context, toolName string) (string, bool, error) {
	return f(ctx, toolName)
}
