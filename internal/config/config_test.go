package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ValidatesCleanly(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Engine.Preferred)
	assert.Equal(t, "confirm", cfg.Safety.Mode)
}

func TestLoad_ParsesTOMLAndPreservesUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[safety]
mode = "yolo"

[remote]
url = "http://localhost:8080"
model = "test-model"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yolo", cfg.Safety.Mode)
	assert.Equal(t, "http://localhost:8080", cfg.Remote.URL)
	assert.Equal(t, "test-model", cfg.Remote.Model)
	// Fields absent from the file keep DefaultConfig's values.
	assert.Equal(t, 10, cfg.Backup.MaxPerFile)
	assert.NotEmpty(t, cfg.Safety.Blocked)
}

func TestLoad_EnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("NATSHELL_SAFETY_MODE", "warn")
	t.Setenv("NATSHELL_REMOTE_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[safety]\nmode = \"yolo\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Safety.Mode)
	assert.Equal(t, "sk-test", cfg.Remote.APIKey)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Safety.Mode = "warn"
	cfg.Remote.Model = "gpt-test"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", loaded.Safety.Mode)
	assert.Equal(t, "gpt-test", loaded.Remote.Model)
}

func TestValidate_RejectsUnknownEnginePreferred(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Preferred = "quantum"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownSafetyMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Safety.Mode = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvalidRegexPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Safety.Blocked = append(cfg.Safety.Blocked, "(unterminated")
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroMaxPerFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backup.MaxPerFile = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigDir_HonorsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgcfg")
	assert.Equal(t, "/tmp/xdgcfg/natshell", ConfigDir())
}

func TestDataDir_HonorsXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdgdata")
	assert.Equal(t, "/tmp/xdgdata/natshell", DataDir())
}
