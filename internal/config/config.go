package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Barent/natshell/internal/logging"
)

// Config is the declarative document backing NatShell's runtime policy.
// It is loaded from $XDG_CONFIG_HOME/natshell/config.toml, defaulted where
// absent, and overridden by environment variables.
type Config struct {
	Model  ModelConfig  `toml:"model" yaml:"model"`
	Remote RemoteConfig `toml:"remote" yaml:"remote"`
	Engine EngineConfig `toml:"engine" yaml:"engine"`
	Agent  AgentConfig  `toml:"agent" yaml:"agent"`
	Safety SafetyConfig `toml:"safety" yaml:"safety"`
	Backup BackupConfig `toml:"backup" yaml:"backup"`
}

// ModelConfig configures the local inference backend.
type ModelConfig struct {
	Path        string `toml:"path" yaml:"path"`                 // file path; "auto" names no file and nothing downloads one
	NCtx        int    `toml:"n_ctx" yaml:"n_ctx"`                // 0 = auto-detect from filename/metadata
	NGPULayers  int    `toml:"n_gpu_layers" yaml:"n_gpu_layers"`
	MainGPU     int    `toml:"main_gpu" yaml:"main_gpu"`
}

// RemoteConfig configures the OpenAI-compatible remote backend.
type RemoteConfig struct {
	URL    string `toml:"url" yaml:"url"`
	Model  string `toml:"model" yaml:"model"`
	APIKey string `toml:"api_key" yaml:"api_key"` // also sourceable from NATSHELL_REMOTE_API_KEY
}

// EngineConfig records which backend the user last selected.
type EngineConfig struct {
	Preferred string `toml:"preferred" yaml:"preferred"` // auto, local, remote
}

// AgentConfig configures the ReAct loop.
type AgentConfig struct {
	MaxSteps    int     `toml:"max_steps" yaml:"max_steps"` // 0 = scale by context window
	Temperature float64 `toml:"temperature" yaml:"temperature"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens"`
}

// SafetyConfig configures the deterministic classifier.
type SafetyConfig struct {
	Mode            string   `toml:"mode" yaml:"mode"` // confirm, warn, yolo
	AlwaysConfirm   []string `toml:"always_confirm" yaml:"always_confirm"`
	Blocked         []string `toml:"blocked" yaml:"blocked"`
	SensitivePaths  []string `toml:"sensitive_paths" yaml:"sensitive_paths"`
}

// BackupConfig configures the backup-before-mutation substrate.
type BackupConfig struct {
	Dir        string `toml:"dir" yaml:"dir"`
	MaxPerFile int    `toml:"max_per_file" yaml:"max_per_file"`
}

// DefaultConfig returns NatShell's built-in defaults, applied before any
// config file or environment override.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path:       "auto",
			NCtx:       0,
			NGPULayers: -1,
			MainGPU:    0,
		},
		Remote: RemoteConfig{},
		Engine: EngineConfig{
			Preferred: "auto",
		},
		Agent: AgentConfig{
			MaxSteps:    0,
			Temperature: 0.1,
			MaxTokens:   2048,
		},
		Safety: SafetyConfig{
			Mode: "confirm",
			AlwaysConfirm: []string{
				`^sudo\b`,
				`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f\b`,
				`\bmv\b`,
				`\bchmod\b`,
				`\bchown\b`,
				`\bkill\b`,
				`\bpkill\b`,
				`\bsystemctl\b`,
				`\bshutdown\b`,
				`\breboot\b`,
			},
			Blocked: []string{
				`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, // fork bomb
				`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f\s+/\s*$`,
				`\bmkfs\b`,
				`\bdd\s+.*of=/dev/`,
				`>\s*/dev/sd[a-z]`,
			},
			SensitivePaths: []string{
				`(^|/)\.ssh/`,
				`(^|/)\.aws/`,
				`(^|/)\.env(\.|$)`,
				`/etc/shadow$`,
				`/etc/passwd$`,
				`(^|/)id_rsa`,
				`(^|/)\.gnupg/`,
			},
		},
		Backup: BackupConfig{
			Dir:        "",
			MaxPerFile: 10,
		},
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/natshell, falling back to ~/.config/natshell.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "natshell")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "natshell")
	}
	return filepath.Join(home, ".config", "natshell")
}

// DataDir returns $XDG_DATA_HOME/natshell, falling back to ~/.local/share/natshell.
func DataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "natshell")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "natshell")
	}
	return filepath.Join(home, ".local", "share", "natshell")
}

// DefaultConfigPath returns the default config.toml location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads configuration from a TOML file, defaulting missing fields and
// applying environment overrides. A path ending in .yaml or .yml is parsed
// as a legacy YAML config instead, for compatibility with pre-NatShell
// config layouts; no other file is looked up in place of path.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse legacy yaml config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	warnIfWorldReadable(path)
	cfg.applyEnvOverrides()
	return cfg, nil
}

func isYAMLPath(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// Save persists the config to path atomically (write to a temp file, then
// rename), matching the "create-then-rename" mutation discipline the rest
// of the codebase uses for the session and backup directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = yaml.Marshal(c)
	} else {
		buf, encErr := tomlEncode(c)
		data, err = buf, encErr
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp config file: %w", err)
	}
	return nil
}

func tomlEncode(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyEnvOverrides layers environment variables over the loaded document:
// env always wins over file contents.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NATSHELL_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("NATSHELL_REMOTE_MODEL"); v != "" {
		c.Remote.Model = v
	}
	if v := os.Getenv("NATSHELL_REMOTE_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("NATSHELL_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("NATSHELL_ENGINE_PREFERRED"); v != "" {
		c.Engine.Preferred = v
	}
	if v := os.Getenv("NATSHELL_SAFETY_MODE"); v != "" {
		c.Safety.Mode = v
	}
}

// warnIfWorldReadable logs a one-time config-category warning when the
// config file (which may hold a plaintext remote.api_key) is readable by
// group or world.
func warnIfWorldReadable(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if runtime.GOOS == "windows" {
		return
	}
	if info.Mode().Perm()&0o077 != 0 {
		logging.ConfigWarn("config file %s is readable by group or world; it may contain a plaintext remote.api_key", path)
	}
}

// GetAgentTimeout returns the per-tool default timeout. Not itself a config
// field (spec keeps this fixed at 60s, auto-scaled by the shell tool for
// detected long-running commands), exposed here for callers that need the
// baseline value.
func GetAgentTimeout() time.Duration {
	return 60 * time.Second
}

// ValidEngineKinds enumerates the accepted engine.preferred values.
var ValidEngineKinds = []string{"auto", "local", "remote"}

// Validate reports a non-nil error for any recognized-but-malformed field.
func (c *Config) Validate() error {
	valid := false
	for _, k := range ValidEngineKinds {
		if c.Engine.Preferred == k {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid engine.preferred: %s (valid: %v)", c.Engine.Preferred, ValidEngineKinds)
	}
	switch c.Safety.Mode {
	case "confirm", "warn", "yolo":
	default:
		return fmt.Errorf("invalid safety.mode: %s (valid: confirm, warn, yolo)", c.Safety.Mode)
	}
	for _, pat := range append(append([]string{}, c.Safety.AlwaysConfirm...), c.Safety.Blocked...) {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("invalid safety pattern %q: %w", pat, err)
		}
	}
	if c.Backup.MaxPerFile < 1 {
		return fmt.Errorf("backup.max_per_file must be >= 1")
	}
	return nil
}
