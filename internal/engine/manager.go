package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/Barent/natshell/internal/errkind"
	"github.com/Barent/natshell/internal/logging"
)

// Manager holds the preferred and fallback engines and implements spec
// §4.3's same-turn fallback: when the preferred remote engine fails with a
// transport-level error after its own retries, the local engine substitutes
// for the remainder of the current user turn.
type Manager struct {
	mu        sync.Mutex
	preferred Engine
	fallback  Engine

	activeForTurn    Engine
	warnedGPUOffload bool
}

// NewManager returns a Manager. fallback may be nil when no local engine is
// configured, in which case fallback is disabled.
func NewManager(preferred, fallback Engine) *Manager {
	return &Manager{preferred: preferred, fallback: fallback}
}

// ResetTurn clears any same-turn fallback substitution, letting the next
// user turn retry the preferred engine.
func (m *Manager) ResetTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeForTurn = nil
}

// remoteContextWindow is the assumed context window for remote engines,
// which do not expose their own window the way a local gguf file's name
// does. Sized to the largest bucket in the step-budget table.
const remoteContextWindow = 262144

// ContextWindow reports the active engine's context window, used to scale
// the step budget and context-manager compaction thresholds.
func (m *Manager) ContextWindow() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.preferred
	if local, ok := active.(*LocalEngine); ok {
		return local.NCtx
	}
	return remoteContextWindow
}

// SetPreferredByName swaps which of the two configured engines is
// preferred, for the /model use command. It only succeeds when name
// matches either the current preferred or fallback engine's Name(); it
// cannot summon an engine that was never configured.
func (m *Manager) SetPreferredByName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.preferred.Name() == name {
		return nil
	}
	if m.fallback != nil && m.fallback.Name() == name {
		m.preferred, m.fallback = m.fallback, m.preferred
		m.activeForTurn = nil
		return nil
	}
	return fmt.Errorf("no configured engine named %q", name)
}

// ActiveEngineName reports which backend will service the next call.
func (m *Manager) ActiveEngineName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeForTurn != nil {
		return m.activeForTurn.Name()
	}
	return m.preferred.Name()
}

// ChatCompletion dispatches to the active engine for this turn, falling
// back to the local engine on a transport-level failure.
func (m *Manager) ChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec, temperature float64, maxTokens int) (*CompletionResult, error) {
	m.mu.Lock()
	active := m.activeForTurn
	if active == nil {
		active = m.preferred
	}
	m.mu.Unlock()

	result, err := active.ChatCompletion(ctx, messages, tools, temperature, maxTokens)
	if err == nil {
		return result, nil
	}

	if !isFallbackEligible(err) || m.fallback == nil || active == m.fallback {
		return nil, errkind.NewEngineTransportError(active.Name(), err)
	}

	logging.EngineWarn("engine %s failed (%v), substituting %s for remainder of turn", active.Name(), err, m.fallback.Name())
	m.mu.Lock()
	m.activeForTurn = m.fallback
	warnGPU := !m.warnedGPUOffload
	m.warnedGPUOffload = true
	m.mu.Unlock()

	var warning string
	if warnGPU {
		if local, ok := m.fallback.(*LocalEngine); ok && local.NGPULayers <= 0 {
			warning = fmt.Sprintf("fallback engine %s has no GPU offload configured; expect slower generation", local.ModelPath)
			logging.EngineWarn("%s", warning)
		}
	}

	fallbackResult, fallbackErr := m.fallback.ChatCompletion(ctx, messages, tools, temperature, maxTokens)
	if fallbackErr != nil {
		return nil, errkind.NewEngineFatalError("both preferred and fallback engines failed: %v", fallbackErr)
	}
	fallbackResult.Warning = warning
	return fallbackResult, nil
}

// isFallbackEligible reports whether err is a connect error, read/pool
// timeout, or other transport-level failure that should fall back to the
// secondary engine. It does not trigger on well-formed API errors (auth,
// bad request) surfaced after a successful round trip.
func isFallbackEligible(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connect error", "connection refused", "transient status", "no such host", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
