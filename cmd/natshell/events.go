package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/Barent/natshell/internal/agent"
)

var (
	traceStyle   = lipgloss.NewStyle().Faint(true)
	blockedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// interactiveEventSink prints the agent-event stream to stdout as faint
// trace lines interleaved with the REPL's own prompt and reply output.
// The response event is not rendered here: runInteractive already prints
// the Loop's returned reply through the glamour renderer.
func interactiveEventSink() agent.EventSink {
	return agent.EventSinkFunc(func(e agent.Event) {
		switch e.Kind {
		case agent.EventThinking:
			fmt.Println(traceStyle.Render("thinking..."))
		case agent.EventExecuting:
			fmt.Println(traceStyle.Render(fmt.Sprintf("running %s", e.ToolCall.Name)))
		case agent.EventToolResult:
			fmt.Println(traceStyle.Render(fmt.Sprintf("%s finished", e.ToolCall.Name)))
		case agent.EventConfirmNeeded:
			// cliConfirmer prints its own prompt; nothing to add here.
		case agent.EventBlocked:
			fmt.Println(blockedStyle.Render(fmt.Sprintf("blocked: %s", e.ToolCall.Name)))
		case agent.EventError:
			fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %s", e.ErrKind, e.Message)))
		}
	})
}

// headlessEventSink writes every non-response event to stderr, keeping
// stdout reserved for the final reply runHeadless prints on its own.
func headlessEventSink() agent.EventSink {
	return agent.EventSinkFunc(func(e agent.Event) {
		switch e.Kind {
		case agent.EventThinking:
			fmt.Fprintln(os.Stderr, "thinking...")
		case agent.EventExecuting:
			fmt.Fprintf(os.Stderr, "running %s\n", e.ToolCall.Name)
		case agent.EventToolResult:
			fmt.Fprintf(os.Stderr, "%s finished\n", e.ToolCall.Name)
		case agent.EventConfirmNeeded:
			fmt.Fprintf(os.Stderr, "confirmation needed: %s\n", e.ToolCall.Name)
		case agent.EventBlocked:
			fmt.Fprintf(os.Stderr, "blocked: %s\n", e.ToolCall.Name)
		case agent.EventError:
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.ErrKind, e.Message)
		}
	})
}
