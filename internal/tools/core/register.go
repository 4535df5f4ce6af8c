package core

import (
	"github.com/Barent/natshell/internal/tools"
)

// RegisterAll registers the core filesystem and search tools with the
// given registry, using rt for backup and read-tracking state shared
// across read_file/write_file/edit_file.
func RegisterAll(registry *tools.Registry, rt *Runtime) error {
	allTools := []*tools.Tool{
		rt.ReadFileTool(),
		rt.WriteFileTool(),
		rt.EditFileTool(),
		ListFilesTool(),
		SearchFilesTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
