package agent

import (
	"fmt"
	"strings"

	"github.com/Barent/natshell/internal/tools"
)

const behaviorRules = `You are NatShell, a natural-language shell. You translate the user's
intent into tool calls against the local machine and report results plainly.

Rules:
- Prefer the narrowest tool that accomplishes the request.
- State assumptions before acting when a request is ambiguous.
- Never fabricate command output; only report what a tool actually returned.
- Destructive or irreversible actions go through confirmation; do not try to
  route around it.
- Keep responses concise. Show the command or file you touched, not a
  narration of your reasoning.`

// BuildSystemPrompt assembles the message injected once at IDLE
// initialization: role, behavior rules, tool catalogue, and a system-info
// block describing the host.
func BuildSystemPrompt(registry *tools.Registry, info SystemInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are running on %s.\n\n", Platform())
	b.WriteString(behaviorRules)
	b.WriteString("\n\n")

	b.WriteString("Available tools:\n")
	for _, cat := range []tools.ToolCategory{tools.CategoryCode, tools.CategoryShell, tools.CategoryTest, tools.CategoryGeneral} {
		for _, t := range registry.GetByCategory(cat) {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}
	b.WriteString("\n")

	b.WriteString("System info:\n")
	b.WriteString(info.Render())

	return b.String()
}
