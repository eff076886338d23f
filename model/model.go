package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/tool"
)

// Guard publishes the provider lifecycle events around a model call.
// *agentguard.AgentGuard satisfies it.
type Guard interface {
	BeforeRequest(ctx context.Context, data core.HookData) []core.HookResult
	AfterResponse(ctx context.Context, usage any) []core.HookResult
}

// ToolExecutor routes a tool call by name.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, input map[string]any) core.ToolResult
}

// ToolSource lists the tools exposed to the model.
type ToolSource interface {
	Names() []string
	Get(name string) (tool.Tool, bool)
}

// Notice is a user-facing message produced by a hook handler.
type Notice struct {
	Text  string            `json:"text"`
	Level core.MessageLevel `json:"level"`
}

// Injections is the aggregated outcome of a provider:request emission.
type Injections struct {
	System  []string `json:"system,omitempty"`
	Notices []Notice `json:"notices,omitempty"`
}

// Collect folds hook results into system injections and notices, keeping
// emission order. Injections for roles other than system are ignored since
// the adapters only know how to place system text.
func Collect(results []core.HookResult) Injections {
	var inj Injections

	for _, r := range results {
		if r.Action == core.ActionInjectContext && r.ContextInjection != "" {
			role := r.ContextInjectionRole
			if role == "" || role == core.RoleSystem {
				inj.System = append(inj.System, r.ContextInjection)
			}
		}

		if r.HasUserMessage() {
			level := r.UserMessageLevel
			if level == "" {
				level = core.LevelInfo
			}
			inj.Notices = append(inj.Notices, Notice{Text: r.UserMessage, Level: level})
		}
	}

	return inj
}

// SystemPrompt joins base with the injected system text, separated by blank lines.
func (i Injections) SystemPrompt(base string) string {
	parts := make([]string, 0, len(i.System)+1)
	if base != "" {
		parts = append(parts, base)
	}
	parts = append(parts, i.System...)

	return strings.Join(parts, "\n\n")
}

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definitions returns the definitions of all tools in src, ordered by name.
func Definitions(src ToolSource) []FunctionDefinition {
	if src == nil {
		return nil
	}

	names := src.Names()
	defs := make([]FunctionDefinition, 0, len(names))

	for _, name := range names {
		t, ok := src.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, FunctionDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}

	return defs
}

// ToolOutcome pairs a tool call with its result.
type ToolOutcome struct {
	Call   ToolCall
	Result core.ToolResult
}

// Content renders the result the way it is fed back to the model.
func (o ToolOutcome) Content() string {
	if o.Result.Success() {
		return o.Result.Output
	}
	return o.Result.Error
}

// RunTools executes calls sequentially in the order the model issued them.
// Arguments that are not a JSON object produce an error result without
// reaching the executor.
func RunTools(ctx context.Context, exec ToolExecutor, calls []ToolCall) []ToolOutcome {
	outcomes := make([]ToolOutcome, 0, len(calls))

	for _, call := range calls {
		input, err := DecodeArguments(call.Arguments)
		if err != nil {
			outcomes = append(outcomes, ToolOutcome{
				Call:   call,
				Result: core.ErrorResult(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)),
			})
			continue
		}

		outcomes = append(outcomes, ToolOutcome{Call: call, Result: exec.ExecuteTool(ctx, call.Name, input)})
	}

	return outcomes
}

// DecodeArguments parses raw tool arguments into an input map. Empty
// arguments yield an empty map.
func DecodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}

	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	if input == nil {
		input = map[string]any{}
	}

	return input, nil
}
