// Package toolset builds the single tools.Registry the Agent Loop
// dispatches Tool Calls through, wiring each tool package's Runtime to
// shared state (the configured backup directory, one output truncation cap).
package toolset

import (
	"github.com/Barent/natshell/internal/backup"
	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/tools"
	"github.com/Barent/natshell/internal/tools/core"
	"github.com/Barent/natshell/internal/tools/help"
	"github.com/Barent/natshell/internal/tools/runcode"
	"github.com/Barent/natshell/internal/tools/shell"
)

// Built is the set of registered tools plus the shared state a front end
// needs to drive AWAIT_SUDO retries and /undo, without importing the tool
// subpackages directly.
type Built struct {
	Registry  *tools.Registry
	SudoCache *shell.CredentialCache
	Backups   *backup.Manager
}

// Build constructs and populates a tools.Registry from cfg.
func Build(cfg *config.Config) (*Built, error) {
	registry := tools.NewRegistry()

	coreRt := core.NewRuntime(cfg.Backup.Dir, cfg.Backup.MaxPerFile)
	if err := core.RegisterAll(registry, coreRt); err != nil {
		return nil, err
	}

	shellRt := shell.NewRuntime(0)
	if err := shell.RegisterAll(registry, shellRt); err != nil {
		return nil, err
	}

	runcodeRt := runcode.NewRuntime(shellRt.TruncateCap)
	if err := runcode.RegisterAll(registry, runcodeRt); err != nil {
		return nil, err
	}

	helpRt := help.NewRuntime(cfg)
	if err := help.RegisterAll(registry, helpRt); err != nil {
		return nil, err
	}

	return &Built{Registry: registry, SudoCache: shellRt.Sudo, Backups: coreRt.Backups}, nil
}
