package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Barent/natshell/internal/config"
)

// BuildManager constructs local/remote engines from cfg and wires them into
// a Manager according to engine.preferred (auto, local, remote).
func BuildManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	local := NewLocalEngine("", cfg.Model.Path, cfg.Model.NCtx, cfg.Model.NGPULayers, cfg.Model.MainGPU)

	var remote Engine
	if cfg.Remote.URL != "" {
		if isGeminiEndpoint(cfg.Remote.URL) {
			g, err := NewRemoteGeminiEngine(ctx, cfg.Remote.APIKey, cfg.Remote.Model)
			if err != nil {
				return nil, fmt.Errorf("build gemini engine: %w", err)
			}
			remote = g
		} else {
			remote = NewRemoteOpenAIEngine(cfg.Remote.APIKey, cfg.Remote.URL, cfg.Remote.Model, 2*time.Minute)
		}
	}

	switch cfg.Engine.Preferred {
	case "local":
		return NewManager(local, nil), nil
	case "remote":
		if remote == nil {
			return nil, fmt.Errorf("engine.preferred=remote but remote.url is not configured")
		}
		return NewManager(remote, local), nil
	default: // "auto"
		if remote != nil {
			return NewManager(remote, local), nil
		}
		return NewManager(local, nil), nil
	}
}

func isGeminiEndpoint(url string) bool {
	return strings.Contains(url, "generativelanguage.googleapis.com") || strings.Contains(url, "gemini")
}
