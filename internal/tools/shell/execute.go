// Package shell implements the execute_shell tool and NatShell's git
// access, both gated by the safety classifier before dispatch.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Barent/natshell/internal/errkind"
	"github.com/Barent/natshell/internal/logging"
	"github.com/Barent/natshell/internal/tools"
)

// longRunningPrefixes is the closed set from SPEC_FULL.md's Open Question
// Decisions: commands that auto-scale their timeout unless the caller set
// one explicitly.
var longRunningPrefixes = []string{
	"nmap", "apt", "apt-get", "yum", "dnf", "brew", "make", "cmake",
	"docker build", "npm install", "yarn install", "pip install",
	"go build", "go test", "cargo build", "mvn", "gradle",
}

const longRunningTimeout = 300 * time.Second
const killGrace = 5 * time.Second

// Runtime holds state execute_shell needs across invocations: the sudo
// credential cache and the output truncation cap.
type Runtime struct {
	Sudo        *CredentialCache
	TruncateCap int
}

// NewRuntime returns a Runtime with a fresh, empty credential cache.
func NewRuntime(truncateCap int) *Runtime {
	if truncateCap <= 0 {
		truncateCap = defaultTruncateCap
	}
	return &Runtime{Sudo: NewCredentialCache(), TruncateCap: truncateCap}
}

// ExecuteShellTool returns the execute_shell tool bound to rt's sudo cache
// and truncation policy.
func (rt *Runtime) ExecuteShellTool() *tools.Tool {
	return &tools.Tool{
		Name:        "execute_shell",
		Description: "Execute a shell command via bash -c and return its output",
		Category:    tools.CategoryShell,
		Priority:    70,
		Execute:     rt.executeShell,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {Type: "string", Description: "The command to run"},
				"timeout": {Type: "integer", Description: "Timeout in seconds (default 60)", Default: 60},
				"workdir": {Type: "string", Description: "Working directory"},
			},
		},
	}
}

func (rt *Runtime) executeShell(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	workdir, _ := args["workdir"].(string)

	timeout := 60
	t, ok := args["timeout"].(int)
	if f, isFloat := args["timeout"].(float64); isFloat {
		t, ok = int(f), true
	}
	if ok && t > 0 {
		timeout = t
	} else if isLongRunning(command) {
		timeout = int(longRunningTimeout.Seconds())
	}

	logging.ToolsDebug("execute_shell: cmd=%q dir=%q timeout=%ds", command, workdir, timeout)

	out, exitCode, err := rt.run(ctx, command, workdir, time.Duration(timeout)*time.Second)
	truncated, wasTruncated := Truncate(out, rt.TruncateCap)

	if detail := tools.ExecutionDetailFromContext(ctx); detail != nil {
		detail.ExitCode = exitCode
		detail.Truncated = wasTruncated
	}

	if err != nil {
		return truncated, errkind.NewToolExecutionError("execute_shell", err)
	}
	if exitCode != 0 {
		return truncated, fmt.Errorf("command exited %d\n%s", exitCode, truncated)
	}
	return truncated, nil
}

// run executes command via bash -c, honoring sudo credential caching and
// process-group cancellation. It returns combined stdout+stderr, the exit
// code, and a non-nil error for a failure to start the process, a timeout,
// a wait failure other than a non-zero exit, or a sudo authentication
// failure (a SecurityRefusedError, returned after the cache is invalidated).
func (rt *Runtime) run(ctx context.Context, command, workdir string, timeout time.Duration) (string, int, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	effectiveCommand := command
	var stdinPipe *bytes.Buffer
	if containsSudo(command) {
		if pw, fresh := rt.Sudo.Get(); fresh {
			effectiveCommand = rewriteFirstSudo(command)
			stdinPipe = bytes.NewBufferString(pw + "\n")
		}
	}

	cmd := exec.CommandContext(execCtx, "bash", "-c", effectiveCommand)
	if workdir != "" {
		cmd.Dir = workdir
	}
	cmd.Env = append(filterEnv(os.Environ()), "LC_ALL=C")
	if stdinPipe != nil {
		cmd.Stdin = stdinPipe
	}
	setProcessGroup(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return "", -1, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
				if isAuthFailure(out.String()) {
					rt.Sudo.Invalidate()
					return out.String(), exitCode, errkind.NewSecurityRefusedError("sudo authentication failed")
				}
			} else {
				return out.String(), -1, err
			}
		}
		return out.String(), exitCode, nil
	case <-execCtx.Done():
		waitDone := make(chan struct{})
		go func() { <-done; close(waitDone) }()
		killProcessGroup(cmd, killGrace, waitDone)
		<-waitDone
		return out.String(), -1, fmt.Errorf("command timed out after %s", timeout)
	}
}

func isAuthFailure(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "sorry, try again") || strings.Contains(lower, "incorrect password")
}

func isLongRunning(command string) bool {
	trimmed := strings.TrimSpace(command)
	for _, prefix := range longRunningPrefixes {
		if strings.HasPrefix(trimmed, prefix) || strings.Contains(trimmed, " "+prefix) {
			return true
		}
	}
	return false
}
