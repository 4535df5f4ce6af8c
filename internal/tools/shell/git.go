package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Barent/natshell/internal/logging"
	"github.com/Barent/natshell/internal/tools"
)

// bannedCommitFlags are rejected outright when subcommand is "commit".
var bannedCommitFlags = []string{"--amend", "--author=", "--date=", "--reset-author", "--allow-empty-message"}

// GitTool returns the structured git_tool wrapping status/diff/log/branch/
// commit/stash, one process invocation per call, output truncated by the
// shared policy.
func (rt *Runtime) GitTool() *tools.Tool {
	return &tools.Tool{
		Name:        "git_tool",
		Description: "Run a structured git subcommand: status, diff, log, branch, commit, or stash",
		Category:    tools.CategoryShell,
		Priority:    75,
		Execute:     rt.executeGitTool,
		Schema: tools.ToolSchema{
			Required: []string{"subcommand"},
			Properties: map[string]tools.Property{
				"subcommand": {
					Type:        "string",
					Description: "One of: status, diff, log, branch, commit, stash",
				},
				"args": {
					Type:        "array",
					Description: "Additional arguments passed to git after the subcommand",
					Items:       &tools.PropertyItems{Type: "string"},
				},
				"workdir": {Type: "string", Description: "Repository directory"},
			},
		},
	}
}

func (rt *Runtime) executeGitTool(ctx context.Context, args map[string]any) (string, error) {
	subcommand, _ := args["subcommand"].(string)
	if subcommand == "" {
		return "", fmt.Errorf("subcommand is required")
	}
	switch subcommand {
	case "status", "diff", "log", "branch", "commit", "stash":
	default:
		return "", fmt.Errorf("unsupported git subcommand: %s", subcommand)
	}

	var extra []string
	if raw, ok := args["args"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				extra = append(extra, s)
			}
		}
	}

	if subcommand == "commit" {
		for _, a := range extra {
			for _, banned := range bannedCommitFlags {
				if strings.HasPrefix(a, banned) {
					return "", fmt.Errorf("commit flag %q is not permitted", a)
				}
			}
		}
	}

	workdir, _ := args["workdir"].(string)

	gitArgs := append([]string{subcommand}, extra...)
	logging.ToolsDebug("git_tool: %v dir=%q", gitArgs, workdir)

	cmd := exec.CommandContext(ctx, "git", gitArgs...)
	if workdir != "" {
		cmd.Dir = workdir
	}
	cmd.Env = filterEnv(cmd.Environ())

	out, err := cmd.CombinedOutput()
	truncated, wasTruncated := Truncate(string(out), rt.TruncateCap)
	if detail := tools.ExecutionDetailFromContext(ctx); detail != nil {
		detail.Truncated = wasTruncated
	}
	if err != nil {
		return truncated, fmt.Errorf("git %s failed: %w", subcommand, err)
	}
	return truncated, nil
}
