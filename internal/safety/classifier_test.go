package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barent/natshell/internal/config"
)

func testClassifier(t *testing.T, mode string) *Classifier {
	t.Helper()
	cfg := config.DefaultConfig().Safety
	cfg.Mode = mode
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestClassifyCommand_EmptyIsBlocked(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("")
	assert.Equal(t, Blocked, v.Risk)
}

func TestClassifyCommand_ForkBombIsBlocked(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand(":(){ :|:& };:")
	assert.Equal(t, Blocked, v.Risk)
}

func TestClassifyCommand_SimpleLsIsSafe(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("ls -la /tmp")
	assert.Equal(t, Safe, v.Risk)
}

func TestClassifyCommand_SudoIsConfirm(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("sudo apt-get update")
	assert.Equal(t, Confirm, v.Risk)
}

func TestClassifyCommand_QuotedOperatorDoesNotSplit(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand(`echo "a && b"`)
	assert.Equal(t, Safe, v.Risk)
}

func TestClassifyCommand_SubshellForcesConfirm(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("echo $(whoami)")
	assert.Equal(t, Confirm, v.Risk)
}

func TestClassifyCommand_BacktickForcesConfirm(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("echo `whoami`")
	assert.Equal(t, Confirm, v.Risk)
}

func TestClassifyCommand_BlockedBeatsConfirmAcrossSegments(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("sudo ls && rm -rf /")
	assert.Equal(t, Blocked, v.Risk)
}

func TestClassifyCommand_BlockedBeatsSubshellExpansion(t *testing.T) {
	c := testClassifier(t, "confirm")
	v := c.ClassifyCommand("rm -rf / && echo $(whoami)")
	assert.Equal(t, Blocked, v.Risk)
}

func TestSplitCommand_OperatorInsideBacktickDoesNotSplit(t *testing.T) {
	segments, hasExpansion := splitCommand("echo `a; b`")
	assert.True(t, hasExpansion)
	require.Len(t, segments, 1)
	assert.Equal(t, "echo `a; b`", segments[0])
}

func TestSplitCommand_OperatorInsideSubshellDoesNotSplit(t *testing.T) {
	segments, hasExpansion := splitCommand("echo $(a; b)")
	assert.True(t, hasExpansion)
	require.Len(t, segments, 1)
	assert.Equal(t, "echo $(a; b)", segments[0])
}

func TestClassifyCommand_TooLargeIsConfirm(t *testing.T) {
	c := testClassifier(t, "confirm")
	big := make([]byte, maxCommandBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	v := c.ClassifyCommand(string(big))
	assert.Equal(t, Confirm, v.Risk)
}

func TestApplyMode_WarnDowngradesConfirmNotBlocked(t *testing.T) {
	c := testClassifier(t, "warn")
	confirmVerdict := c.applyMode(Verdict{Risk: Confirm, Reason: "x"})
	assert.Equal(t, Safe, confirmVerdict.Risk)

	blockedVerdict := c.applyMode(Verdict{Risk: Blocked, Reason: "x"})
	assert.Equal(t, Blocked, blockedVerdict.Risk)
}

func TestApplyMode_YoloDowngradesConfirmNotBlocked(t *testing.T) {
	c := testClassifier(t, "yolo")
	confirmVerdict := c.applyMode(Verdict{Risk: Confirm, Reason: "x"})
	assert.Equal(t, Safe, confirmVerdict.Risk)

	blockedVerdict := c.applyMode(Verdict{Risk: Blocked, Reason: "x"})
	assert.Equal(t, Blocked, blockedVerdict.Risk)
}

func TestClassifyTool_NonShellFixedMapping(t *testing.T) {
	c := testClassifier(t, "confirm")

	assert.Equal(t, Safe, c.ClassifyTool("list_directory", nil).Risk)
	assert.Equal(t, Safe, c.ClassifyTool("search_files", nil).Risk)
	assert.Equal(t, Safe, c.ClassifyTool("natshell_help", nil).Risk)
	assert.Equal(t, Confirm, c.ClassifyTool("write_file", nil).Risk)
	assert.Equal(t, Confirm, c.ClassifyTool("edit_file", nil).Risk)
	assert.Equal(t, Confirm, c.ClassifyTool("run_code", nil).Risk)
}

func TestClassifyTool_ReadFileSensitivePath(t *testing.T) {
	c := testClassifier(t, "confirm")

	safe := c.ClassifyTool("read_file", map[string]any{"path": "/tmp/notes.txt"})
	assert.Equal(t, Safe, safe.Risk)

	sensitive := c.ClassifyTool("read_file", map[string]any{"path": "/home/user/.ssh/id_rsa"})
	assert.Equal(t, Confirm, sensitive.Risk)
}
