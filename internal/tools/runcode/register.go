package runcode

import (
	"github.com/Barent/natshell/internal/tools"
	"github.com/Barent/natshell/internal/tools/shell"
)

// NewRuntime builds a Runtime whose truncation policy is shared with the
// execute_shell tool.
func NewRuntime(truncateCap int) *Runtime {
	return &Runtime{
		TruncateCap: truncateCap,
		Truncate:    shell.Truncate,
	}
}

// RegisterAll registers run_code with the given registry.
func RegisterAll(registry *tools.Registry, rt *Runtime) error {
	return registry.Register(rt.RunCodeTool())
}
