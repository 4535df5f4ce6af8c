// Command natshell is the interactive natural-language shell: it turns a
// user's plain-English request into a sequence of gated tool calls against
// the local machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/logging"
)

var (
	flagModel       string
	flagRemote      string
	flagRemoteModel string
	flagDownload    string
	flagConfigPath  string
	flagVerbose     bool
	flagHeadless    bool
	flagDangerFast  bool
	flagMCP         []string

	cliLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "natshell [instruction]",
	Short: "A natural-language shell driven by a local or remote LLM",
	Long: `NatShell translates plain-English requests into gated tool calls
against the local machine: reading and editing files, running shell
commands and code, all classified Safe, Confirm, or Blocked before they
ever run.

Run without arguments to start the interactive session. Pass an
instruction (or pipe one on stdin) with --headless to run one turn and
exit.`,
	// Interactive mode renders its own event stream; a second structured
	// logger writing to stderr alongside it would just be noise, so zap is
	// only stood up for --headless, one-shot invocations.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !flagHeadless {
			return nil
		}
		zapCfg := zap.NewProductionConfig()
		if flagVerbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		cliLogger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cliLogger != nil {
			_ = cliLogger.Sync()
		}
	},
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "path to a local gguf model file (no model is downloaded for \"auto\")")
	rootCmd.PersistentFlags().StringVar(&flagRemote, "remote", "", "base URL of an OpenAI-compatible or Gemini endpoint")
	rootCmd.PersistentFlags().StringVar(&flagRemoteModel, "remote-model", "", "model name to request from --remote")
	rootCmd.PersistentFlags().StringVar(&flagDownload, "download", "", "print that model download is not implemented in this build and exit")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config.toml (default: $XDG_CONFIG_HOME/natshell/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagHeadless, "headless", false, "run one instruction non-interactively and exit")
	rootCmd.PersistentFlags().BoolVar(&flagDangerFast, "danger-fast", false, "downgrade all confirmations to yolo mode for this run")
	rootCmd.PersistentFlags().StringArrayVar(&flagMCP, "mcp", nil, "MCP server address (repeatable; accepted but unused, no MCP connection is made)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flagModel != "" {
		cfg.Model.Path = flagModel
	}
	if flagRemote != "" {
		cfg.Remote.URL = flagRemote
	}
	if flagRemoteModel != "" {
		cfg.Remote.Model = flagRemoteModel
	}
	if flagDangerFast {
		cfg.Safety.Mode = "yolo"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = filepath.Join(config.DataDir(), "backups")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	level := "info"
	if flagVerbose {
		level = "debug"
	}
	if err := logging.Initialize(config.DataDir(), flagVerbose, false, level); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	if flagDownload != "" {
		return runDownload(flagDownload)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var events = interactiveEventSink()
	if flagHeadless {
		events = headlessEventSink()
	}

	app, err := newApp(ctx, cfg, events)
	if err != nil {
		return fmt.Errorf("start natshell: %w", err)
	}

	if flagHeadless {
		return runHeadless(ctx, app, args)
	}
	return runInteractive(ctx, app)
}

func runDownload(name string) error {
	fmt.Printf("model download for %q is not implemented in this build; place a gguf file and pass --model <path> instead\n", name)
	return nil
}
