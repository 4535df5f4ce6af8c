package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/convo"
	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/errkind"
	"github.com/Barent/natshell/internal/safety"
	"github.com/Barent/natshell/internal/tools"
)

// scriptedEngine replays a fixed sequence of CompletionResults, one per
// ChatCompletion call, so a test can drive the loop through a scripted
// sequence of REASONING turns without a real backend.
type scriptedEngine struct {
	results []*engine.CompletionResult
	calls   int
}

func (s *scriptedEngine) Name() string { return "scripted" }

// turnEngineAdapter adapts engine.Manager to engine.Engine for tests that
// need to pass the manager to convo.NewManager, mirroring the production
// adapter in cmd/natshell/app.go.
type turnEngineAdapter struct {
	mgr *engine.Manager
}

func (t *turnEngineAdapter) Name() string { return t.mgr.ActiveEngineName() }

func (t *turnEngineAdapter) ChatCompletion(ctx context.Context, messages []engine.Message, toolSpecs []engine.ToolSpec, temperature float64, maxTokens int) (*engine.CompletionResult, error) {
	return t.mgr.ChatCompletion(ctx, messages, toolSpecs, temperature, maxTokens)
}

func (s *scriptedEngine) ChatCompletion(ctx context.Context, messages []engine.Message, toolSpecs []engine.ToolSpec, temperature float64, maxTokens int) (*engine.CompletionResult, error) {
	if s.calls >= len(s.results) {
		return nil, errors.New("scriptedEngine: no more scripted results")
	}
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

func newTestRegistry(t *testing.T, name string, exec tools.ExecuteFunc) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&tools.Tool{
		Name:     name,
		Category: tools.CategoryGeneral,
		Execute:  exec,
		Schema:   tools.ToolSchema{Properties: map[string]tools.Property{}},
	}))
	return registry
}

func newTestLoop(t *testing.T, registry *tools.Registry, eng engine.Engine, confirmer Confirmer, sudoPrompter SudoPrompter, sudoCache SudoCredentialSetter) *Loop {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Safety.Mode = "confirm"
	classifier, err := safety.New(cfg.Safety)
	require.NoError(t, err)

	conv := convo.New()
	engineMgr := engine.NewManager(eng, nil)
	ctxMgr := convo.NewManager(conv, 32768, &turnEngineAdapter{mgr: engineMgr})

	return NewLoop(conv, ctxMgr, engineMgr, registry, classifier, confirmer, sudoPrompter, sudoCache, nil, cfg, 32768)
}

func TestLoop_SafeToolRunsWithoutConfirmation(t *testing.T) {
	registry := newTestRegistry(t, "list_directory", func(ctx context.Context, args map[string]any) (string, error) {
		return "a.txt\nb.txt", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "list_directory", Args: map[string]any{}}},
		},
		{FinishReason: engine.FinishStop, Text: "done"},
	}}

	loop := newTestLoop(t, registry, eng, nil, nil, nil)
	reply, err := loop.Run(context.Background(), "list the directory")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)

	msgs := loop.conv.Messages()
	var sawToolResult bool
	for _, m := range msgs {
		if m.Role == convo.RoleTool {
			sawToolResult = true
			assert.Equal(t, "a.txt\nb.txt", m.Content)
		}
	}
	assert.True(t, sawToolResult)
}

func TestLoop_BlockedToolNeverExecutes(t *testing.T) {
	var executed bool
	registry := newTestRegistry(t, "execute_shell", func(ctx context.Context, args map[string]any) (string, error) {
		executed = true
		return "", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "execute_shell", Args: map[string]any{"command": ""}}},
		},
		{FinishReason: engine.FinishStop, Text: "acknowledged"},
	}}

	loop := newTestLoop(t, registry, eng, nil, nil, nil)
	reply, err := loop.Run(context.Background(), "run an empty command")
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", reply)
	assert.False(t, executed, "a Blocked verdict must never reach the tool's Execute func")

	var sawBlockedResult bool
	for _, m := range loop.conv.Messages() {
		if m.Role == convo.RoleTool && m.Content != "" {
			sawBlockedResult = true
		}
	}
	assert.True(t, sawBlockedResult, "the blocked verdict should still surface as a tool result")
}

func TestLoop_BlockedToolEmitsOnlyBlockedEvent(t *testing.T) {
	registry := newTestRegistry(t, "execute_shell", func(ctx context.Context, args map[string]any) (string, error) {
		return "", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "execute_shell", Args: map[string]any{"command": ""}}},
		},
		{FinishReason: engine.FinishStop, Text: "acknowledged"},
	}}

	cfg := config.DefaultConfig()
	cfg.Safety.Mode = "confirm"
	classifier, err := safety.New(cfg.Safety)
	require.NoError(t, err)

	conv := convo.New()
	engineMgr := engine.NewManager(eng, nil)
	ctxMgr := convo.NewManager(conv, 32768, &turnEngineAdapter{mgr: engineMgr})

	var events []Event
	sink := EventSinkFunc(func(e Event) { events = append(events, e) })
	loop := NewLoop(conv, ctxMgr, engineMgr, registry, classifier, nil, nil, nil, sink, cfg, 32768)

	reply, err := loop.Run(context.Background(), "run an empty command")
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", reply)

	var blocked, executing int
	for _, e := range events {
		switch e.Kind {
		case EventBlocked:
			blocked++
			assert.Equal(t, "execute_shell", e.ToolCall.Name)
		case EventExecuting:
			executing++
		}
	}
	assert.Equal(t, 1, blocked, "exactly one blocked event")
	assert.Equal(t, 0, executing, "no executing event for a blocked tool call")
}

func TestLoop_DeclinedConfirmationNeverExecutes(t *testing.T) {
	var executed bool
	registry := newTestRegistry(t, "write_file", func(ctx context.Context, args map[string]any) (string, error) {
		executed = true
		return "wrote", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "write_file", Args: map[string]any{"path": "/tmp/x"}}},
		},
		{FinishReason: engine.FinishStop, Text: "acknowledged"},
	}}

	confirmer := ConfirmerFunc(func(ctx context.Context, req PendingConfirm) (bool, error) {
		return false, nil
	})

	loop := newTestLoop(t, registry, eng, confirmer, nil, nil)
	reply, err := loop.Run(context.Background(), "overwrite a file")
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", reply)
	assert.False(t, executed, "declined confirmation must not execute the tool")
}

func TestLoop_ConfirmApprovedExecutes(t *testing.T) {
	registry := newTestRegistry(t, "write_file", func(ctx context.Context, args map[string]any) (string, error) {
		return "wrote", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "write_file", Args: map[string]any{"path": "/tmp/x"}}},
		},
		{FinishReason: engine.FinishStop, Text: "done"},
	}}

	var confirmed bool
	confirmer := ConfirmerFunc(func(ctx context.Context, req PendingConfirm) (bool, error) {
		confirmed = true
		assert.Equal(t, "write_file", req.ToolName)
		return true, nil
	})

	loop := newTestLoop(t, registry, eng, confirmer, nil, nil)
	reply, err := loop.Run(context.Background(), "write a file")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	assert.True(t, confirmed)
}

func TestLoop_YoloModeSkipsConfirmation(t *testing.T) {
	registry := newTestRegistry(t, "write_file", func(ctx context.Context, args map[string]any) (string, error) {
		return "wrote", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "write_file", Args: map[string]any{"path": "/tmp/x"}}},
		},
		{FinishReason: engine.FinishStop, Text: "done"},
	}}

	confirmer := ConfirmerFunc(func(ctx context.Context, req PendingConfirm) (bool, error) {
		t.Fatal("yolo mode must never call the confirmer")
		return false, nil
	})

	cfg := config.DefaultConfig()
	cfg.Safety.Mode = "yolo"
	classifier, err := safety.New(cfg.Safety)
	require.NoError(t, err)

	conv := convo.New()
	engineMgr := engine.NewManager(eng, nil)
	ctxMgr := convo.NewManager(conv, 32768, &turnEngineAdapter{mgr: engineMgr})
	loop := NewLoop(conv, ctxMgr, engineMgr, registry, classifier, confirmer, nil, nil, nil, cfg, 32768)

	reply, err := loop.Run(context.Background(), "write a file")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
}

func TestLoop_SudoRefusalRetriesOnce(t *testing.T) {
	var attempts int
	registry := newTestRegistry(t, "execute_shell", func(ctx context.Context, args map[string]any) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errkind.NewSecurityRefusedError("sudo authentication failed")
		}
		return "ok", nil
	})

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{
			FinishReason: engine.FinishToolCalls,
			ToolCalls:    []engine.ToolCall{{ID: "1", Name: "execute_shell", Args: map[string]any{"command": "true"}}},
		},
		{FinishReason: engine.FinishStop, Text: "done"},
	}}

	confirmer := ConfirmerFunc(func(ctx context.Context, req PendingConfirm) (bool, error) {
		return true, nil
	})
	sudoPrompter := SudoPrompterFunc(func(ctx context.Context, toolName string) (string, bool, error) {
		return "hunter2", true, nil
	})
	cache := &fakeCredentialSetter{}

	loop := newTestLoop(t, registry, eng, confirmer, sudoPrompter, cache)
	reply, err := loop.Run(context.Background(), "run a privileged command")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "hunter2", cache.password)
}

type fakeCredentialSetter struct {
	password string
}

func (f *fakeCredentialSetter) Set(password string) { f.password = password }

func TestLoop_EngineWarningEmitsErrorEvent(t *testing.T) {
	registry := tools.NewRegistry()

	eng := &scriptedEngine{results: []*engine.CompletionResult{
		{FinishReason: engine.FinishStop, Text: "done", Warning: "fallback engine has no GPU offload configured; expect slower generation"},
	}}

	cfg := config.DefaultConfig()
	classifier, err := safety.New(cfg.Safety)
	require.NoError(t, err)

	conv := convo.New()
	engineMgr := engine.NewManager(eng, nil)
	ctxMgr := convo.NewManager(conv, 32768, &turnEngineAdapter{mgr: engineMgr})

	var events []Event
	sink := EventSinkFunc(func(e Event) { events = append(events, e) })
	loop := NewLoop(conv, ctxMgr, engineMgr, registry, classifier, nil, nil, nil, sink, cfg, 32768)

	reply, err := loop.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)

	var sawWarning bool
	for _, e := range events {
		if e.Kind == EventError && e.ErrKind == "engine_warning" {
			sawWarning = true
			assert.Contains(t, e.Message, "GPU offload")
		}
	}
	assert.True(t, sawWarning, "expected an engine_warning error event")
}
