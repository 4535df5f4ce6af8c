package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Barent/natshell/internal/agent"
	"github.com/Barent/natshell/internal/backup"
	"github.com/Barent/natshell/internal/config"
	"github.com/Barent/natshell/internal/convo"
	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/safety"
	"github.com/Barent/natshell/internal/session"
	"github.com/Barent/natshell/internal/tools"
	"github.com/Barent/natshell/internal/tools/shell"
	"github.com/Barent/natshell/internal/toolset"
)

// app holds the wiring for one process's worth of NatShell state: the
// conversation, its context manager, the engine manager, and the agent
// loop that drives them.
type app struct {
	cfg          *config.Config
	conv         *convo.Conversation
	ctxMgr       *convo.Manager
	engineMgr    *engine.Manager
	sessionStore *session.Store
	loop         *agent.Loop
	sudoCache    *shell.CredentialCache
	backups      *backup.Manager
	registry     *tools.Registry

	// defaultEngineName is whichever engine BuildManager picked as
	// preferred at startup, remembered so /model default can revert to it.
	defaultEngineName string

	// systemPrompt is re-appended after /clear, since Clear() wipes the
	// whole message slice including the system turn.
	systemPrompt string

	// pendingPlan holds the numbered steps /plan asked the engine for,
	// consumed by a bare /exeplan run.
	pendingPlan []string
}

func newApp(ctx context.Context, cfg *config.Config, events agent.EventSink) (*app, error) {
	built, err := toolset.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	registry, sudoCache := built.Registry, built.SudoCache

	classifier, err := safety.New(cfg.Safety)
	if err != nil {
		return nil, fmt.Errorf("build safety classifier: %w", err)
	}

	engineMgr, err := engine.BuildManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build engine manager: %w", err)
	}

	conv := convo.New()
	sysPrompt := agent.BuildSystemPrompt(registry, agent.CollectSystemInfo())
	conv.Append(convo.NewSystemMessage(sysPrompt, time.Now()))
	summarizer := &turnEngine{mgr: engineMgr}
	ctxMgr := convo.NewManager(conv, engineMgr.ContextWindow(), summarizer)

	sessionDir := filepath.Join(config.DataDir(), "sessions")
	store, err := session.NewStore(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	confirmer := &cliConfirmer{}
	sudoPrompter := &cliSudoPrompter{}

	loop := agent.NewLoop(conv, ctxMgr, engineMgr, registry, classifier, confirmer, sudoPrompter, sudoCache, events, cfg, engineMgr.ContextWindow())

	return &app{
		cfg:               cfg,
		conv:              conv,
		ctxMgr:            ctxMgr,
		engineMgr:         engineMgr,
		sessionStore:      store,
		loop:              loop,
		sudoCache:         sudoCache,
		backups:           built.Backups,
		registry:          registry,
		defaultEngineName: engineMgr.ActiveEngineName(),
		systemPrompt:      sysPrompt,
	}, nil
}

// turnEngine adapts engine.Manager to engine.Engine for the context
// manager's one-shot summarization calls, which should not participate in
// the same-turn fallback bookkeeping of a real conversational turn.
type turnEngine struct {
	mgr *engine.Manager
}

func (t *turnEngine) Name() string { return t.mgr.ActiveEngineName() }

func (t *turnEngine) ChatCompletion(ctx context.Context, messages []engine.Message, toolSpecs []engine.ToolSpec, temperature float64, maxTokens int) (*engine.CompletionResult, error) {
	return t.mgr.ChatCompletion(ctx, messages, toolSpecs, temperature, maxTokens)
}
