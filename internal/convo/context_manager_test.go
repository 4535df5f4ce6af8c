package convo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barent/natshell/internal/engine"
)

type stubSummarizer struct {
	text string
}

func (s *stubSummarizer) Name() string { return "stub" }

func (s *stubSummarizer) ChatCompletion(ctx context.Context, messages []engine.Message, tools []engine.ToolSpec, temperature float64, maxTokens int) (*engine.CompletionResult, error) {
	return &engine.CompletionResult{Text: s.text, FinishReason: engine.FinishStop}, nil
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("a reasonably long sentence of text"), 0)
}

func TestNeedsCompaction(t *testing.T) {
	conv := New()
	conv.Append(NewSystemMessage("system prompt", time.Now()))
	for i := 0; i < 50; i++ {
		conv.Append(NewUserMessage(largeText(500), time.Now()))
	}

	mgr := NewManager(conv, 4096, &stubSummarizer{})
	assert.True(t, mgr.NeedsCompaction(512))
}

func TestCompact_ReplacesOldTurnsWithSummary(t *testing.T) {
	conv := New()
	conv.Append(NewSystemMessage("system prompt", time.Now()))
	for i := 0; i < 50; i++ {
		conv.Append(NewUserMessage(largeText(500), time.Now()))
	}

	mgr := NewManager(conv, 4096, &stubSummarizer{text: "summary of earlier turns"})
	err := mgr.Compact(context.Background())
	require.NoError(t, err)

	messages := conv.Messages()
	require.NotEmpty(t, messages)
	assert.Equal(t, RoleSystem, messages[0].Role)

	found := false
	for _, m := range messages {
		if m.Role == RoleSystem && m.Content == "[conversation summary] summary of earlier turns" {
			found = true
		}
	}
	assert.True(t, found, "expected a synthetic summary message")
	assert.Less(t, len(messages), 52)
}

func TestCompact_NoOpWhenNothingOldEnough(t *testing.T) {
	conv := New()
	conv.Append(NewSystemMessage("system prompt", time.Now()))
	conv.Append(NewUserMessage("hello", time.Now()))

	mgr := NewManager(conv, 262144, &stubSummarizer{text: "should not be used"})
	err := mgr.Compact(context.Background())
	require.NoError(t, err)

	messages := conv.Messages()
	assert.Len(t, messages, 2)
}

// TestCompact_DoesNotSplitAssistantToolCallGroup constructs a conversation
// where the naive token-budget boundary lands exactly between an assistant
// tool-call message and its tool result, and asserts Compact extends the
// tail backward to keep the pair together.
func TestCompact_DoesNotSplitAssistantToolCallGroup(t *testing.T) {
	conv := New()
	conv.Append(NewSystemMessage("system prompt", time.Now()))
	for i := 0; i < 10; i++ {
		conv.Append(NewUserMessage(largeText(500), time.Now()))
	}
	// Large enough that, combined with the tool call overhead, its token
	// estimate alone exceeds the tail budget below — this is the message
	// the naive walk-back must exclude, landing the boundary right after
	// it unless the fix extends the tail back over it.
	conv.Append(NewAssistantMessage(largeText(400), []ToolCall{{ID: "call-1", Name: "read_file", Arguments: map[string]any{"path": "a.txt"}}}, time.Now()))
	conv.Append(NewToolMessage("call-1", "read_file", "ok", time.Now()))
	conv.Append(NewAssistantMessage("done", nil, time.Now()))

	// contextSize/3 == 100: small enough that the tool result and final
	// reply (under 10 tokens together) fit, but the large tool-call
	// message alone does not.
	mgr := NewManager(conv, 300, &stubSummarizer{text: "summary of earlier turns"})
	err := mgr.Compact(context.Background())
	require.NoError(t, err)

	messages := conv.Messages()
	for i, m := range messages {
		if m.Role == RoleTool {
			require.Greater(t, i, 0)
			prev := messages[i-1]
			var hasMatchingCall bool
			for _, tc := range prev.ToolCalls {
				if tc.ID == m.ToolCallID {
					hasMatchingCall = true
				}
			}
			assert.True(t, hasMatchingCall, "tool message %d has no matching preceding tool call", i)
		}
	}
}

func largeText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
