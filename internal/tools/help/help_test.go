package help

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barent/natshell/internal/config"
)

func TestExecuteHelp_StaticTopic(t *testing.T) {
	rt := &Runtime{Config: config.DefaultConfig()}
	out, err := rt.executeHelp(context.Background(), map[string]any{"topic": "overview"})
	require.NoError(t, err)
	assert.Contains(t, out, "NatShell")
}

func TestExecuteHelp_UnknownTopic(t *testing.T) {
	rt := &Runtime{Config: config.DefaultConfig()}
	_, err := rt.executeHelp(context.Background(), map[string]any{"topic": "nonsense"})
	assert.ErrorContains(t, err, "unknown help topic")
}

func TestExecuteHelp_ConfigTopicReflectsLiveConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Safety.Mode = "yolo"
	rt := &Runtime{Config: cfg}

	out, err := rt.executeHelp(context.Background(), map[string]any{"topic": "config"})
	require.NoError(t, err)
	assert.Contains(t, out, "safety.mode = yolo")
}

func TestExecuteHelp_SafetyTopicCountsPatterns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Safety.Blocked = []string{"rm -rf /", "mkfs"}
	rt := &Runtime{Config: cfg}

	out, err := rt.executeHelp(context.Background(), map[string]any{"topic": "safety"})
	require.NoError(t, err)
	assert.Contains(t, out, "blocked patterns: 2")
}

func TestExecuteHelp_ConfigReferenceIsStatic(t *testing.T) {
	rt := &Runtime{}
	out, err := rt.executeHelp(context.Background(), map[string]any{"topic": "config_reference"})
	require.NoError(t, err)
	assert.Contains(t, out, "backup.dir")
}
