package sessionstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/internal/util"
	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/tool"
)

// ToolName is the name the tool is mounted under.
const ToolName = "session_state"

const (
	msgNoDirectory      = "No session state directory found."
	msgNoFiles          = "No state files found."
	msgFreshSessionHint = " This appears to be a fresh session."
)

// Input is the decoded tool input. Its struct tags drive the JSON schema.
type Input struct {
	Operation    string         `json:"operation" enum:"save_state,load_state,list_states" description:"Operation to perform."`
	Summary      string         `json:"summary,omitempty" description:"Brief summary of what was accomplished this session (save_state)."`
	Accomplished []string       `json:"accomplished,omitempty" description:"List of completed items (save_state)."`
	Remaining    []string       `json:"remaining,omitempty" description:"List of items still to do (save_state)."`
	Decisions    []string       `json:"decisions,omitempty" description:"Key decisions made this session (save_state, optional)."`
	Context      map[string]any `json:"context,omitempty" description:"Additional context (save_state, optional)."`
}

// ToolOptions configures a Tool.
type ToolOptions struct {
	// SessionID returns the host session id attached to new snapshots.
	// An empty result leaves the field out.
	SessionID func() string
	Logger    logging.Logger
}

// Tool exposes a Store to the model as the session_state tool.
type Tool struct {
	store     *Store
	schema    map[string]any
	sessionID func() string
	logger    logging.Logger
}

var _ tool.Tool = (*Tool)(nil)

// NewTool creates the session_state tool over store.
func NewTool(store *Store, optFns ...func(o *ToolOptions)) *Tool {
	opts := ToolOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Tool{
		store:     store,
		schema:    inputSchema(),
		sessionID: opts.SessionID,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

func inputSchema() map[string]any {
	schema := util.CreateSchema(Input{})

	props := schema["properties"].(map[string]any)
	ctxProp := props["context"].(map[string]any)
	ctxProp["properties"] = map[string]any{
		"branch":            map[string]any{"type": "string"},
		"files_changed":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"working_directory": map[string]any{"type": "string"},
	}

	return schema
}

// Name implements tool.Tool.
func (t *Tool) Name() string { return ToolName }

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Save and load session state for clean handoff between sessions."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any { return t.schema }

// Execute dispatches on input["operation"]. Every failure, including a
// panic, is reported as an error result.
func (t *Tool) Execute(_ context.Context, input map[string]any) (res core.ToolResult) {
	opName := fmt.Sprint(input["operation"])

	defer func() {
		if p := recover(); p != nil {
			res = t.failed(opName, fmt.Errorf("panic: %v", p))
		}
	}()

	name, _ := input["operation"].(string)

	op, err := ParseOperation(name)
	if err != nil {
		return core.ErrorResult(fmt.Sprintf("Unknown operation: %s. Use save_state, load_state, or list_states.", opName))
	}

	if err := util.ValidateParameters(input, t.schema); err != nil {
		return core.ErrorResult(fmt.Sprintf("invalid %s input: %v", ToolName, err))
	}

	in, err := decodeInput(input)
	if err != nil {
		return core.ErrorResult(fmt.Sprintf("invalid %s input: %v", ToolName, err))
	}

	switch op {
	case OpSaveState:
		return t.save(in)
	case OpLoadState:
		return t.load()
	case OpListStates:
		return t.list()
	default:
		return core.ErrorResult(fmt.Sprintf("Unknown operation: %s. Use save_state, load_state, or list_states.", opName))
	}
}

func decodeInput(input map[string]any) (Input, error) {
	var in Input

	data, err := json.Marshal(input)
	if err != nil {
		return in, err
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, err
	}

	return in, nil
}

func (t *Tool) save(in Input) core.ToolResult {
	res, err := t.store.Save(SaveRequest{
		Summary:      in.Summary,
		Accomplished: in.Accomplished,
		Remaining:    in.Remaining,
		Decisions:    in.Decisions,
		Context:      in.Context,
		SessionID:    t.currentSessionID(),
	})
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return core.ErrorResult(vErr.Error())
		}
		return t.failed(OpSaveState.String(), err)
	}

	msg := "State saved to " + res.Path
	if res.Pruned > 0 {
		suffix := "s"
		if res.Pruned == 1 {
			suffix = ""
		}
		msg += fmt.Sprintf(" (pruned %d old file%s)", res.Pruned, suffix)
	}

	return core.OutputResult(msg)
}

func (t *Tool) load() core.ToolResult {
	res, err := t.store.LoadLatest()
	if err != nil {
		var rErr *ReadError
		if errors.As(err, &rErr) {
			t.logger.Warn("session_state.load.unreadable", "path", rErr.Path, "error", rErr.Err.Error())
			return core.ErrorResult(rErr.Error())
		}
		return t.failed(OpLoadState.String(), err)
	}

	switch res.Status {
	case StatusNoDirectory:
		return core.OutputResult(msgNoDirectory + msgFreshSessionHint)
	case StatusEmpty:
		return core.OutputResult(msgNoFiles + msgFreshSessionHint)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(res.Raw), "", "  "); err != nil {
		return core.ErrorResult((&ReadError{Path: res.Path, Err: err}).Error())
	}

	return core.OutputResult(buf.String())
}

func (t *Tool) list() core.ToolResult {
	res, err := t.store.List()
	if err != nil {
		return t.failed(OpListStates.String(), err)
	}

	if !res.DirExists {
		return core.OutputResult(msgNoDirectory)
	}
	if len(res.Entries) == 0 {
		return core.OutputResult(msgNoFiles)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d state file(s):", len(res.Entries))
	for _, e := range res.Entries {
		fmt.Fprintf(&sb, "\n%s (%d bytes)", e.Name, e.Size)
	}

	return core.OutputResult(sb.String())
}

// currentSessionID calls the host supplied accessor; a failing accessor
// means no session id.
func (t *Tool) currentSessionID() (id string) {
	if t.sessionID == nil {
		return ""
	}

	defer func() {
		if p := recover(); p != nil {
			t.logger.Debug("session_state.session_id.unavailable", "panic", fmt.Sprint(p))
			id = ""
		}
	}()

	return t.sessionID()
}

func (t *Tool) failed(op string, err error) core.ToolResult {
	logging.ErrorWithStack(t.logger, err, "session_state.failed", "operation", op)
	return core.ErrorResult(fmt.Sprintf("%s %s failed: %v", ToolName, op, err))
}
