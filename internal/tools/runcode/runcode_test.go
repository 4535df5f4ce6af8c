package runcode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunCode_Bash(t *testing.T) {
	rt := NewRuntime(4000)
	out, err := rt.executeRunCode(context.Background(), map[string]any{
		"language": "bash",
		"code":     "echo hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
}

func TestExecuteRunCode_UnsupportedLanguage(t *testing.T) {
	rt := NewRuntime(4000)
	_, err := rt.executeRunCode(context.Background(), map[string]any{
		"language": "cobol",
		"code":     "DISPLAY 'HI'.",
	})
	assert.ErrorContains(t, err, "unsupported language")
}

func TestExecuteRunCode_PassesStdin(t *testing.T) {
	rt := NewRuntime(4000)
	out, err := rt.executeRunCode(context.Background(), map[string]any{
		"language": "bash",
		"code":     "read line; echo \"got: $line\"",
		"stdin":    "hello\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "got: hello\n", out)
}

func TestExecuteRunCode_NonZeroExitSurfacesOutput(t *testing.T) {
	rt := NewRuntime(4000)
	out, err := rt.executeRunCode(context.Background(), map[string]any{
		"language": "bash",
		"code":     "echo failing; exit 1",
	})
	require.Error(t, err)
	assert.Contains(t, out, "failing")
}
