// Package convo implements the Conversation data model: an ordered
// sequence of Messages plus the Context Manager that keeps the projected
// prompt within the active engine's context window.
package convo

import "time"

// Role identifies which of the four Message kinds a turn is.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation carried on an assistant Message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one conversation turn. Invariant: every assistant Message
// carrying ToolCalls is immediately followed by one tool Message per call,
// in the same order, matched by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // set on assistant turns that invoke tools
	ToolCallID string     // set on tool turns, matches the originating ToolCall.ID
	ToolName   string     // set on tool turns
	CreatedAt  time.Time
}

// NewSystemMessage builds the immutable system turn injected at IDLE
// initialization.
func NewSystemMessage(content string, at time.Time) Message {
	return Message{Role: RoleSystem, Content: content, CreatedAt: at}
}

// NewUserMessage builds a verbatim user turn.
func NewUserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: at}
}

// NewAssistantMessage builds a model output turn, with or without tool calls.
func NewAssistantMessage(content string, calls []ToolCall, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls, CreatedAt: at}
}

// NewToolMessage builds a structured tool result turn keyed by the
// originating Tool Call id.
func NewToolMessage(toolCallID, toolName, content string, at time.Time) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, ToolName: toolName, CreatedAt: at}
}
