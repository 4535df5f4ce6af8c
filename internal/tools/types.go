// Package tools defines NatShell's fixed tool catalogue: the JSON-Schema-
// style parameter descriptors the model consumes, and the registry the
// Agent Loop dispatches Tool Calls through.
package tools

import (
	"context"
)

// ToolCategory classifies tools for priority grouping and listing.
type ToolCategory string

const (
	// CategoryCode covers file operations and search.
	CategoryCode ToolCategory = "/code"

	// CategoryShell covers command execution and git access.
	CategoryShell ToolCategory = "/shell"

	// CategoryTest covers run_code and test execution.
	CategoryTest ToolCategory = "/test"

	// CategoryGeneral is for tools usable in any context, e.g. natshell_help.
	CategoryGeneral ToolCategory = "/general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
// This enables LLM tool calling with proper validation.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// ExecutionDetail lets a tool report ToolResult fields the plain
// ExecuteFunc signature has no room for: a real process exit code and
// whether the returned output was truncated. Most tools have no such
// concept and leave it at its zero value, which matches ExecuteTool's
// existing generic fallback (exit 0 on success, 1 on error, never
// truncated). A tool with a real exit status, like execute_shell, writes
// into the pointer WithExecutionDetail attaches to ctx.
type ExecutionDetail struct {
	ExitCode  int
	Truncated bool
}

type executionDetailKey struct{}

// WithExecutionDetail returns a context carrying a fresh ExecutionDetail
// for a single Execute call, and the pointer to write into.
func WithExecutionDetail(ctx context.Context) (context.Context, *ExecutionDetail) {
	d := &ExecutionDetail{}
	return context.WithValue(ctx, executionDetailKey{}, d), d
}

// ExecutionDetailFromContext retrieves the ExecutionDetail WithExecutionDetail
// attached to ctx, or nil if none was attached (e.g. a tool invoked
// directly in a test without going through ExecuteTool).
func ExecutionDetailFromContext(ctx context.Context) *ExecutionDetail {
	d, _ := ctx.Value(executionDetailKey{}).(*ExecutionDetail)
	return d
}

// Tool defines one entry in the fixed tool catalogue the Agent Loop
// exposes to the model.
type Tool struct {
	// Name is the unique identifier used for registry lookup and as the
	// tool-call name the model must echo back in a Tool Call.
	Name string

	// Description explains what the tool does.
	// Used for LLM tool calling and documentation.
	Description string

	// Category classifies the tool for listing and /help grouping.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority is used when multiple tools match.
	// Higher priority tools are preferred (default 50).
	Priority int
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// WithPriority returns a copy of the tool with the given priority.
func (t *Tool) WithPriority(priority int) *Tool {
	copy := *t
	copy.Priority = priority
	return &copy
}

// ToolResult wraps the result of tool execution with metadata:
// {output, error, exit_code, truncated}.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// ExitCode is 0 for success; non-shell tools encode status the same
	// way (0 on success, non-zero on failure).
	ExitCode int

	// Truncated is true when Result was shortened by the shared output
	// truncation policy.
	Truncated bool

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
