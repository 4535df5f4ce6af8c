package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barent/natshell/internal/config"
)

// resetFlags restores the package-level flag vars to their zero values so
// tests don't leak state into each other via cobra's shared globals.
func resetFlags(t *testing.T) {
	t.Helper()
	orig := struct {
		model, remote, remoteModel, download, configPath string
		verbose, headless, dangerFast                    bool
		mcp                                               []string
	}{flagModel, flagRemote, flagRemoteModel, flagDownload, flagConfigPath, flagVerbose, flagHeadless, flagDangerFast, flagMCP}
	t.Cleanup(func() {
		flagModel, flagRemote, flagRemoteModel, flagDownload, flagConfigPath = orig.model, orig.remote, orig.remoteModel, orig.download, orig.configPath
		flagVerbose, flagHeadless, flagDangerFast = orig.verbose, orig.headless, orig.dangerFast
		flagMCP = orig.mcp
	})
	flagModel, flagRemote, flagRemoteModel, flagDownload, flagConfigPath = "", "", "", "", ""
	flagVerbose, flagHeadless, flagDangerFast = false, false, false
	flagMCP = nil
}

func TestLoadConfig_AppliesFlagOverrides(t *testing.T) {
	resetFlags(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	flagConfigPath = filepath.Join(t.TempDir(), "missing.toml")
	flagModel = "/models/local.gguf"
	flagRemote = "http://localhost:11434"
	flagRemoteModel = "llama"
	flagDangerFast = true

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/models/local.gguf", cfg.Model.Path)
	assert.Equal(t, "http://localhost:11434", cfg.Remote.URL)
	assert.Equal(t, "llama", cfg.Remote.Model)
	assert.Equal(t, "yolo", cfg.Safety.Mode)
}

func TestLoadConfig_DefaultsBackupDirWhenUnset(t *testing.T) {
	resetFlags(t)
	dataHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", dataHome)
	flagConfigPath = filepath.Join(t.TempDir(), "missing.toml")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(config.DataDir(), "backups"), cfg.Backup.Dir)
}

func TestLoadConfig_RejectsInvalidConfig(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[safety]\nmode = \"bogus\"\n"), 0o600))

	flagConfigPath = path
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestMaskedKeyState(t *testing.T) {
	assert.Equal(t, "not set", maskedKeyState(""))
	assert.Equal(t, "set (hidden)", maskedKeyState("sk-super-secret"))
}
