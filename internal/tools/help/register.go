package help

import (
	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/tools"
)

// NewRuntime builds a Runtime bound to cfg.
func NewRuntime(cfg *config.Config) *Runtime {
	return &Runtime{Config: cfg}
}

// RegisterAll registers natshell_help with the given registry.
func RegisterAll(registry *tools.Registry, rt *Runtime) error {
	return registry.Register(rt.NatShellHelpTool())
}
