package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Barent/natshell/internal/convo"
	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/session"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// runInteractive drives the read-eval-print loop: slash commands are
// handled locally, anything else is a natural-language turn through the
// Agent Loop.
func runInteractive(ctx context.Context, a *app) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		renderer = nil
	}

	fmt.Println("NatShell. Type /help for commands, or just say what you want done.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("natshell> "))
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if strings.HasPrefix(line, "/") {
			if handled, err := dispatchSlash(ctx, a, line, renderer); err != nil {
				fmt.Println(errorStyle.Render(err.Error()))
			} else if handled == slashExit {
				return nil
			}
			continue
		}

		reply, err := a.loop.Run(ctx, line)
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			continue
		}
		printReply(reply, renderer)
	}
}

func printReply(reply string, renderer *glamour.TermRenderer) {
	if renderer == nil {
		fmt.Println(reply)
		return
	}
	rendered, err := renderer.Render(reply)
	if err != nil {
		fmt.Println(reply)
		return
	}
	fmt.Print(rendered)
}

type slashOutcome int

const (
	slashContinue slashOutcome = iota
	slashExit
)

func dispatchSlash(ctx context.Context, a *app, line string, renderer *glamour.TermRenderer) (slashOutcome, error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case "/help":
		topic := "overview"
		if len(rest) > 0 {
			topic = rest[0]
		}
		result, err := a.registry.Execute(ctx, "natshell_help", map[string]any{"topic": topic})
		if err != nil {
			return slashContinue, err
		}
		printReply(result.Result, renderer)

	case "/clear":
		a.conv.Clear()
		a.conv.Append(convo.NewSystemMessage(a.systemPrompt, time.Now()))
		fmt.Println("conversation cleared")

	case "/cmd":
		if len(rest) == 0 {
			return slashContinue, fmt.Errorf("usage: /cmd <shell command>")
		}
		reply, err := a.loop.Run(ctx, "run this exact shell command and show me the output: "+strings.Join(rest, " "))
		if err != nil {
			return slashContinue, err
		}
		printReply(reply, renderer)

	case "/model":
		return slashContinue, handleModel(a, rest)

	case "/compact":
		if err := a.ctxMgr.Compact(ctx); err != nil {
			return slashContinue, err
		}
		fmt.Println("conversation compacted")

	case "/plan":
		if len(rest) == 0 {
			return slashContinue, fmt.Errorf("usage: /plan <description>")
		}
		return slashContinue, handlePlan(ctx, a, strings.Join(rest, " "))

	case "/exeplan":
		if len(rest) == 0 || rest[0] != "run" {
			return slashContinue, fmt.Errorf("usage: /exeplan run [file]")
		}
		if len(rest) >= 2 {
			return slashContinue, runPlanFile(ctx, a, rest[1], renderer)
		}
		return slashContinue, runPendingPlan(ctx, a, renderer)

	case "/undo":
		if len(rest) == 0 {
			return slashContinue, fmt.Errorf("usage: /undo <path>")
		}
		return slashContinue, handleUndo(a, rest[0])

	case "/save":
		return slashContinue, handleSave(a, rest)

	case "/load":
		if len(rest) == 0 {
			return slashContinue, fmt.Errorf("usage: /load <session-id>")
		}
		return slashContinue, handleLoad(a, rest[0])

	case "/sessions":
		return slashContinue, handleSessions(a)

	case "/keys":
		fmt.Printf("remote.api_key is %s\n", maskedKeyState(a.cfg.Remote.APIKey))

	case "/history":
		printHistory(a)

	case "/exit", "/quit":
		return slashExit, nil

	default:
		return slashContinue, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return slashContinue, nil
}

func handleModel(a *app, rest []string) error {
	if len(rest) == 0 {
		fmt.Printf("active engine: %s\n", a.engineMgr.ActiveEngineName())
		return nil
	}
	switch rest[0] {
	case "use":
		if len(rest) < 2 {
			return fmt.Errorf("usage: /model use <local|remote>")
		}
		if err := a.engineMgr.SetPreferredByName(rest[1]); err != nil {
			return err
		}
		fmt.Printf("switched to %s\n", rest[1])
	case "default":
		if err := a.engineMgr.SetPreferredByName(a.defaultEngineName); err != nil {
			return err
		}
		fmt.Println("reverted to the configured default engine")
	default:
		return fmt.Errorf("usage: /model [use <local|remote>|default]")
	}
	return nil
}

func handleUndo(a *app, path string) error {
	if a.backups == nil {
		return fmt.Errorf("no backup manager configured")
	}
	ts, err := a.backups.Restore(path)
	if err != nil {
		return err
	}
	fmt.Printf("restored %s from backup taken %s\n", path, ts.Format(time.RFC3339))
	return nil
}

func handleSave(a *app, rest []string) error {
	title := strings.Join(rest, " ")
	rec := &session.Record{
		ID:        a.conv.ID,
		CreatedAt: time.Now(),
		Title:     title,
		Messages:  a.conv.Messages(),
	}
	if err := a.sessionStore.Save(rec); err != nil {
		return err
	}
	fmt.Printf("saved session %s\n", rec.ID)
	return nil
}

func handleLoad(a *app, id string) error {
	rec, err := a.sessionStore.Load(id)
	if err != nil {
		return err
	}
	a.conv.Replace(rec.Messages)
	fmt.Printf("loaded session %s (%d messages)\n", rec.ID, len(rec.Messages))
	return nil
}

func handleSessions(a *app) error {
	ids, err := a.sessionStore.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no saved sessions")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func maskedKeyState(key string) string {
	if key == "" {
		return "not set"
	}
	return "set (hidden)"
}

func printHistory(a *app) {
	for _, msg := range a.conv.Messages() {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
}

func runPlanFile(ctx context.Context, a *app, path string, renderer *glamour.TermRenderer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan file: %w", err)
	}
	var steps []string
	for _, line := range strings.Split(string(data), "\n") {
		step := strings.TrimSpace(line)
		if step == "" || strings.HasPrefix(step, "#") {
			continue
		}
		steps = append(steps, step)
	}
	return runPlanSteps(ctx, a, steps, renderer)
}

// runPendingPlan executes the steps a previous /plan stored on the session,
// the same way runPlanFile executes a plan file's lines.
func runPendingPlan(ctx context.Context, a *app, renderer *glamour.TermRenderer) error {
	if len(a.pendingPlan) == 0 {
		return fmt.Errorf("no pending plan; run /plan <description> first")
	}
	steps := a.pendingPlan
	a.pendingPlan = nil
	return runPlanSteps(ctx, a, steps, renderer)
}

// runPlanSteps feeds each step to the Agent Loop as a synthetic user turn,
// sequentially, stopping on the first step whose turn returns an error.
func runPlanSteps(ctx context.Context, a *app, steps []string, renderer *glamour.TermRenderer) error {
	for _, step := range steps {
		fmt.Printf("--- step: %s ---\n", step)
		reply, err := a.loop.Run(ctx, step)
		if err != nil {
			return fmt.Errorf("plan step %q failed: %w", step, err)
		}
		printReply(reply, renderer)
	}
	return nil
}

// handlePlan asks the engine for a numbered plan for description, without
// running any of it, and stores the parsed steps as a's pending plan.
func handlePlan(ctx context.Context, a *app, description string) error {
	messages := []engine.Message{
		{
			Role: "user",
			Content: "Break the following task into a short numbered list of concrete, " +
				"sequential shell/agent steps. Reply with only the numbered list, one " +
				"step per line, no preamble or trailing commentary.\n\nTask: " + description,
		},
	}
	result, err := a.engineMgr.ChatCompletion(ctx, messages, nil, 0.2, 1024)
	if err != nil {
		return fmt.Errorf("plan request failed: %w", err)
	}

	steps := parsePlanSteps(result.Text)
	if len(steps) == 0 {
		return fmt.Errorf("engine returned no plan steps")
	}
	a.pendingPlan = steps

	fmt.Println("pending plan:")
	for i, step := range steps {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	fmt.Println("run it with /exeplan run")
	return nil
}

// parsePlanSteps strips a leading "1.", "2)", or "-" list marker off each
// non-empty line of a numbered-plan response.
func parsePlanSteps(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimLeft(line, "0123456789.)- \t")
		line = strings.TrimSpace(line)
		if line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}
