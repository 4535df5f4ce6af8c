// Package engine implements the Inference Engine contract: a uniform
// chat_completion call over a local backend (a bundled tokenizer +
// language-model runtime addressed over its local completion endpoint)
// and a remote backend (an OpenAI-compatible HTTP endpoint, or Gemini via
// google.golang.org/genai), with retry and same-turn fallback between them.
package engine

import "context"

// Message is one turn of conversation history passed to chat_completion.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCall // set on role="assistant" messages that invoked tools
	ToolCallID string     // set on role="tool" messages, matches ToolCall.ID
	ToolName   string     // set on role="tool" messages
}

// ToolSpec describes a tool the engine may invoke, translated from the
// tool registry's JSON-Schema-style descriptor.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// ToolCall is a tool invocation requested by the model, with arguments
// already parsed into a key-value map.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FinishReason classifies why generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishCancelled FinishReason = "cancelled"
	FinishError     FinishReason = "error"
)

// CompletionResult is the Inference Engine's uniform response shape.
type CompletionResult struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason FinishReason

	// Warning carries a one-shot, user-visible condition surfaced by the
	// Manager alongside an otherwise-successful result, such as the
	// fallback engine having no GPU offload configured. Empty on every
	// call after the first one that set it.
	Warning string
}

// Engine is the contract both backends implement.
type Engine interface {
	ChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec, temperature float64, maxTokens int) (*CompletionResult, error)
	// Name identifies the backend for logging ("local" or "remote").
	Name() string
}
