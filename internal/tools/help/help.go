// Package help implements the natshell_help tool: static documentation for
// fixed topics plus dynamic documentation generated from live config.
package help

import (
	"context"
	"fmt"
	"strings"

	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/tools"
)

var staticTopics = map[string]string{
	"overview": "NatShell is a natural-language shell: type what you want done, " +
		"and the agent plans tool calls to accomplish it, gated by a safety " +
		"classifier that requires confirmation for risky actions.",
	"commands": "Slash commands: /help, /clear, /cmd, /model [use|default], " +
		"/compact, /plan, /exeplan run <file>, /undo, /save, /load, /sessions, " +
		"/keys, /history.",
	"tools": "Tool catalogue: execute_shell, read_file, write_file, edit_file, " +
		"run_code, search_files, list_directory, git_tool, natshell_help.",
	"models": "NatShell runs a local model file (model.path) or a remote " +
		"OpenAI-compatible endpoint (remote.url/remote.model). engine.preferred " +
		"selects auto, local, or remote.",
	"troubleshooting": "If the local model fails to load, check model.path and " +
		"n_gpu_layers. If the remote endpoint is unreachable, NatShell falls back " +
		"to the local engine for the remainder of the turn and logs the " +
		"substitution.",
}

// Runtime supplies the live config the dynamic topics render from.
type Runtime struct {
	Config *config.Config
}

// NatShellHelpTool returns the natshell_help tool bound to rt's config.
func (rt *Runtime) NatShellHelpTool() *tools.Tool {
	return &tools.Tool{
		Name:        "natshell_help",
		Description: "Return documentation for a topic",
		Category:    tools.CategoryGeneral,
		Priority:    60,
		Execute:     rt.executeHelp,
		Schema: tools.ToolSchema{
			Required: []string{"topic"},
			Properties: map[string]tools.Property{
				"topic": {
					Type:        "string",
					Description: "One of: overview, commands, tools, models, troubleshooting, config, config_reference, safety",
				},
			},
		},
	}
}

func (rt *Runtime) executeHelp(ctx context.Context, args map[string]any) (string, error) {
	topic, _ := args["topic"].(string)

	if text, ok := staticTopics[topic]; ok {
		return text, nil
	}

	switch topic {
	case "config":
		return rt.renderConfig(), nil
	case "config_reference":
		return configReference, nil
	case "safety":
		return rt.renderSafety(), nil
	default:
		return "", fmt.Errorf("unknown help topic: %s", topic)
	}
}

func (rt *Runtime) renderConfig() string {
	if rt.Config == nil {
		return "no config loaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "engine.preferred = %s\n", rt.Config.Engine.Preferred)
	fmt.Fprintf(&b, "model.path = %s\n", rt.Config.Model.Path)
	fmt.Fprintf(&b, "remote.url = %s\n", rt.Config.Remote.URL)
	fmt.Fprintf(&b, "safety.mode = %s\n", rt.Config.Safety.Mode)
	fmt.Fprintf(&b, "backup.max_per_file = %d\n", rt.Config.Backup.MaxPerFile)
	return b.String()
}

func (rt *Runtime) renderSafety() string {
	if rt.Config == nil {
		return "no config loaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", rt.Config.Safety.Mode)
	fmt.Fprintf(&b, "always_confirm patterns: %d\n", len(rt.Config.Safety.AlwaysConfirm))
	fmt.Fprintf(&b, "blocked patterns: %d\n", len(rt.Config.Safety.Blocked))
	fmt.Fprintf(&b, "sensitive_paths patterns: %d\n", len(rt.Config.Safety.SensitivePaths))
	return b.String()
}

const configReference = `Recognized config.toml options:
  model.path, model.n_ctx, model.n_gpu_layers, model.main_gpu
  remote.url, remote.model, remote.api_key
  engine.preferred (auto, local, remote)
  agent.max_steps, agent.temperature, agent.max_tokens
  safety.mode (confirm, warn, yolo), safety.always_confirm, safety.blocked, safety.sensitive_paths
  backup.dir, backup.max_per_file`
