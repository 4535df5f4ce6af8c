package shell

import (
	"github.com/Barent/natshell/internal/tools"
)

// RegisterAll registers execute_shell and git_tool with the given
// registry, sharing rt's sudo cache and truncation policy.
func RegisterAll(registry *tools.Registry, rt *Runtime) error {
	allTools := []*tools.Tool{
		rt.ExecuteShellTool(),
		rt.GitTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
