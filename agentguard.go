// Package agentguard provides a high-level façade that mounts the context
// budget guardian and the session_state tool onto a minimal host boundary
// (a hook registry and a tool registry). Most applications interact with this
// package by:
//  1. Creating an AgentGuard via New() (optionally with a loaded config.Config)
//  2. Calling AfterResponse with the provider usage after each model reply
//  3. Calling BeforeRequest before each model request and applying the results
//  4. Routing tool calls through ExecuteTool
//
// Hosts that already own a hook and tool registry can skip the façade and
// use guardian.Mount and sessionstate.Mount directly.
package agentguard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentguard/config"
	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/guardian"
	"github.com/hupe1980/agentguard/hooks"
	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/sessionstate"
	"github.com/hupe1980/agentguard/tool"
)

// BudgetToolName is the read-only tool reporting tracker statistics.
const BudgetToolName = "context_budget"

// Options configures the AgentGuard instance.
type Options struct {
	// Config defaults to config.Default() when nil.
	Config *config.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// SessionID supplies the host session id stored in snapshots.
	SessionID func() string

	// Now overrides the snapshot clock, mainly for tests.
	Now func() time.Time
}

// AgentGuard aggregates the registries and the two mounted components.
type AgentGuard struct {
	cfg     *config.Config
	logger  logging.Logger
	hooks   *hooks.Registry
	tools   *tool.Registry
	tracker *guardian.Tracker
	store   *sessionstate.Store

	closeOnce sync.Once
	unmount   func()
}

// New validates the configuration and mounts the guardian hooks, the
// session_state tool and the context_budget tool.
func New(optFns ...func(o *Options)) (*AgentGuard, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.OrNoOp(opts.Logger)

	hookReg := hooks.NewRegistry(func(o *hooks.Options) { o.Logger = componentLogger(logger, "hooks") })
	toolReg := tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = componentLogger(logger, "tools") })

	tracker, err := guardian.NewTracker(cfg.TrackerOptions(), func(o *guardian.Options) {
		o.Logger = componentLogger(logger, "guardian")
	})
	if err != nil {
		return nil, err
	}

	stateLogger := componentLogger(logger, "session_state")
	store := sessionstate.NewStore(cfg.State.Dir, func(o *sessionstate.StoreOptions) {
		o.Logger = stateLogger
		if opts.Now != nil {
			o.Now = opts.Now
		}
	})

	g := &AgentGuard{
		cfg:     cfg,
		logger:  logger,
		hooks:   hookReg,
		tools:   toolReg,
		tracker: tracker,
		store:   store,
	}

	unmountGuardian := guardian.Mount(hookReg, tracker)

	if _, err := sessionstate.Mount(toolReg, store, func(o *sessionstate.ToolOptions) {
		o.SessionID = opts.SessionID
		o.Logger = stateLogger
	}); err != nil {
		unmountGuardian()
		return nil, fmt.Errorf("mount %s: %w", sessionstate.ToolName, err)
	}

	if err := toolReg.Mount(g.budgetTool()); err != nil {
		unmountGuardian()
		return nil, fmt.Errorf("mount %s: %w", BudgetToolName, err)
	}

	g.unmount = func() {
		unmountGuardian()
		toolReg.Unmount(sessionstate.ToolName)
		toolReg.Unmount(BudgetToolName)
	}

	return g, nil
}

func (g *AgentGuard) budgetTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		BudgetToolName,
		"Report how much of the model context window this session has used.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (string, error) {
			data, err := json.MarshalIndent(g.tracker.Stats(), "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		func(o *tool.FunctionOptions) { o.Logger = componentLogger(g.logger, "tools") },
	)
}

// componentLogger tags structured loggers with a component attribute.
func componentLogger(l logging.Logger, component string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent(component)
	}
	return l
}

// Config returns the effective configuration.
func (g *AgentGuard) Config() *config.Config { return g.cfg }

// Hooks returns the hook registry the guardian is mounted on.
func (g *AgentGuard) Hooks() *hooks.Registry { return g.hooks }

// Tools returns the tool registry.
func (g *AgentGuard) Tools() *tool.Registry { return g.tools }

// Tracker returns the budget tracker.
func (g *AgentGuard) Tracker() *guardian.Tracker { return g.tracker }

// Store returns the snapshot store.
func (g *AgentGuard) Store() *sessionstate.Store { return g.store }

// AfterResponse publishes provider:response with usage as payload.
func (g *AgentGuard) AfterResponse(ctx context.Context, usage any) []core.HookResult {
	return g.hooks.Emit(ctx, core.EventProviderResponse, core.HookData{"usage": usage})
}

// BeforeRequest publishes provider:request and returns the injections to
// apply to the outgoing request.
func (g *AgentGuard) BeforeRequest(ctx context.Context, data core.HookData) []core.HookResult {
	return g.hooks.Emit(ctx, core.EventProviderRequest, data)
}

// ExecuteTool routes a tool call by name.
func (g *AgentGuard) ExecuteTool(ctx context.Context, name string, input map[string]any) core.ToolResult {
	return g.tools.Execute(ctx, name, input)
}

// Close unmounts everything New mounted. It is safe to call more than once.
func (g *AgentGuard) Close() error {
	g.closeOnce.Do(func() {
		g.unmount()
		g.logger.Debug("agentguard.closed")
	})
	return nil
}
