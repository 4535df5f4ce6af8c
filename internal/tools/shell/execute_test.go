package shell

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barent/natshell/internal/tools"
)

func TestExecuteShell_CapturesStdout(t *testing.T) {
	rt := NewRuntime(0)
	out, err := rt.executeShell(context.Background(), map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecuteShell_NonZeroExitReturnsError(t *testing.T) {
	rt := NewRuntime(0)
	_, err := rt.executeShell(context.Background(), map[string]any{"command": "exit 3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 3")
}

func TestExecuteShell_ReportsRealExitCodeViaExecutionDetail(t *testing.T) {
	rt := NewRuntime(0)
	ctx, detail := tools.WithExecutionDetail(context.Background())
	_, err := rt.executeShell(ctx, map[string]any{"command": "exit 3"})
	require.Error(t, err)
	assert.Equal(t, 3, detail.ExitCode)
}

func TestExecuteShell_ReportsTruncationViaExecutionDetail(t *testing.T) {
	rt := NewRuntime(4)
	ctx, detail := tools.WithExecutionDetail(context.Background())
	out, err := rt.executeShell(ctx, map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Contains(t, out, "truncated")
	assert.True(t, detail.Truncated)
}

func TestExecuteShell_RequiresCommand(t *testing.T) {
	rt := NewRuntime(0)
	_, err := rt.executeShell(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestExecuteShell_HonorsWorkdir(t *testing.T) {
	rt := NewRuntime(0)
	dir := t.TempDir()
	out, err := rt.executeShell(context.Background(), map[string]any{"command": "pwd", "workdir": dir})
	require.NoError(t, err)
	assert.Equal(t, dir+"\n", out)
}

func TestExecuteShell_StripsSensitiveEnvFromChild(t *testing.T) {
	rt := NewRuntime(0)
	t.Setenv("NATSHELL_TEST_SECRET_KEY", "supersecret")
	out, err := rt.executeShell(context.Background(), map[string]any{"command": "env"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(out, "supersecret"))
}

func TestCredentialCache_SetAndGet(t *testing.T) {
	c := NewCredentialCache()
	_, ok := c.Get()
	assert.False(t, ok)

	c.Set("hunter2")
	pw, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, "hunter2", pw)

	c.Invalidate()
	_, ok = c.Get()
	assert.False(t, ok)
}

func TestRewriteFirstSudo(t *testing.T) {
	assert.Equal(t, "sudo -S apt update", rewriteFirstSudo("sudo apt update"))
	assert.Equal(t, "echo hi && sudo -S apt update", rewriteFirstSudo("echo hi && sudo apt update"))
	assert.Equal(t, "run-pseudo-thing", rewriteFirstSudo("run-pseudo-thing"))
}
