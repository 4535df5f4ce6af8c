package convo

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/logging"
)

// charsPerToken is a cheap token-count heuristic calibrated for a
// 4-characters-per-token model family; avoids running a real tokenizer
// just to decide whether to compact.
const charsPerToken = 4.0

// contextSafetyMargin reserves headroom below the raw context window for
// generation.
const contextSafetyMargin = 0.1

// EstimateTokens applies the cheap heuristic to a string.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(float64(utf8.RuneCountInString(s)) / charsPerToken)
}

func estimateMessageTokens(m Message) int {
	tokens := 4 + EstimateTokens(m.Content) // small per-turn overhead
	for _, tc := range m.ToolCalls {
		tokens += 4 + EstimateTokens(tc.Name)
		for k, v := range tc.Arguments {
			tokens += 2 + EstimateTokens(k) + EstimateTokens(fmt.Sprintf("%v", v))
		}
	}
	return tokens
}

// Manager tracks the projected prompt size for a Conversation against an
// engine's context window and triggers compaction when it would be
// exceeded.
type Manager struct {
	conv        *Conversation
	contextSize int
	summarizer  engine.Engine
}

// NewManager returns a Context Manager bound to conv, sized to
// contextWindow tokens and using summarizer for one-shot compaction calls.
func NewManager(conv *Conversation, contextWindow int, summarizer engine.Engine) *Manager {
	return &Manager{conv: conv, contextSize: contextWindow, summarizer: summarizer}
}

// ProjectedTokens estimates the token cost of the full conversation as it
// stands.
func (m *Manager) ProjectedTokens() int {
	total := 0
	for _, msg := range m.conv.Messages() {
		total += estimateMessageTokens(msg)
	}
	return total
}

// budget returns the usable token budget after the safety margin.
func (m *Manager) budget() int {
	return int(float64(m.contextSize) * (1 - contextSafetyMargin))
}

// NeedsCompaction reports whether the projected prompt plus maxTokens would
// exceed the usable context window.
func (m *Manager) NeedsCompaction(maxTokens int) bool {
	return m.ProjectedTokens()+maxTokens > m.budget()
}

// Compact runs the compaction routine unconditionally, replacing all
// non-system turns older than the retained tail with a synthetic summary
// message. K is chosen so the retained tail fits in one-third of the
// context window.
func (m *Manager) Compact(ctx context.Context) error {
	messages := m.conv.Messages()

	var system []Message
	var rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	tailBudget := m.contextSize / 3
	tailStart := len(rest)
	tailTokens := 0
	for tailStart > 0 {
		next := estimateMessageTokens(rest[tailStart-1])
		if tailTokens+next > tailBudget {
			break
		}
		tailTokens += next
		tailStart--
	}

	// A tool-role message never opens the retained tail on its own: it
	// belongs to the assistant tool-call message immediately before it,
	// and cutting that pairing across the summarization boundary would
	// leave a tool result in the tail with no matching call ahead of it.
	// Extend the tail backward to the start of that group instead.
	for tailStart > 0 && tailStart < len(rest) && rest[tailStart].Role == RoleTool {
		tailStart--
	}

	toSummarize := rest[:tailStart]
	tail := rest[tailStart:]

	if len(toSummarize) == 0 {
		logging.ContextDebug("compact: nothing old enough to summarize")
		return nil
	}

	summary, err := m.summarize(ctx, toSummarize)
	if err != nil {
		return fmt.Errorf("compact: summarize failed: %w", err)
	}

	summaryMsg := NewSystemMessage("[conversation summary] "+summary, time.Now())

	newMessages := make([]Message, 0, len(system)+1+len(tail))
	newMessages = append(newMessages, system...)
	newMessages = append(newMessages, summaryMsg)
	newMessages = append(newMessages, tail...)

	m.conv.Replace(newMessages)
	logging.Context("compact: summarized %d turns, retained %d", len(toSummarize), len(tail))
	return nil
}

// CompactIfNeeded runs Compact only when NeedsCompaction(maxTokens) is true.
func (m *Manager) CompactIfNeeded(ctx context.Context, maxTokens int) error {
	if !m.NeedsCompaction(maxTokens) {
		return nil
	}
	return m.Compact(ctx)
}

func (m *Manager) summarize(ctx context.Context, messages []Message) (string, error) {
	var transcript strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	summaryPrompt := []engine.Message{
		{Role: "system", Content: "Summarize the following conversation excerpt in a few sentences, preserving decisions, file paths, and open tasks. Do not add commentary."},
		{Role: "user", Content: transcript.String()},
	}

	result, err := m.summarizer.ChatCompletion(ctx, summaryPrompt, nil, 0.0, 512)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}
