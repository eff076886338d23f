package agentguard

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentguard/config"
	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/internal/testutil"
	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/sessionstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, window int) *AgentGuard {
	t.Helper()

	cfg := config.Default()
	cfg.Guardian.ContextWindow = window
	cfg.State.Dir = filepath.Join(t.TempDir(), sessionstate.DefaultDir)

	g, err := New(func(o *Options) {
		o.Config = cfg
		o.SessionID = func() string { return "sess-1" }
		o.Now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	return g
}

func TestNew_Defaults(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, 200_000, g.Tracker().ContextWindow())
	assert.Equal(t, sessionstate.DefaultDir, g.Store().Dir())
	assert.Equal(t, []string{BudgetToolName, sessionstate.ToolName}, g.Tools().Names())
	assert.Len(t, g.Hooks().Registrations(core.EventProviderRequest), 1)
	assert.Len(t, g.Hooks().Registrations(core.EventProviderResponse), 1)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Guardian.SoftThreshold = 0.95

	_, err := New(func(o *Options) { o.Config = cfg })
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSessionFlow(t *testing.T) {
	g := newGuard(t, 1000)
	ctx := context.Background()

	assert.Empty(t, g.AfterResponse(ctx, testutil.ResponsePayload(300, 20)["usage"]))

	results := g.BeforeRequest(ctx, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "[Session Guardian: 30% context used, turn 1]", results[0].ContextInjection)

	g.AfterResponse(ctx, map[string]any{"input_tokens": 650, "output_tokens": 40})
	results = g.BeforeRequest(ctx, nil)
	require.Len(t, results, 1)
	assert.Equal(t, core.LevelWarning, results[0].UserMessageLevel)

	res := g.ExecuteTool(ctx, sessionstate.ToolName, map[string]any{
		"operation":    "save_state",
		"summary":      "halfway there",
		"accomplished": []any{"a"},
		"remaining":    []any{"b"},
	})
	require.True(t, res.Success(), res.Error)
	assert.True(t, strings.HasSuffix(res.Output, "2026-10-16T09-00-00.json"), res.Output)

	loaded, err := g.Store().LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, "sess-1", loaded.Snapshot.SessionID)

	g.AfterResponse(ctx, json.RawMessage(`{"usage":{"input_tokens":900,"output_tokens":5}}`))
	results = g.BeforeRequest(ctx, nil)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ContextInjection, "HANDOFF REQUIRED")
	assert.Equal(t, core.LevelError, results[0].UserMessageLevel)

	budget := g.ExecuteTool(ctx, BudgetToolName, nil)
	require.True(t, budget.Success(), budget.Error)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(budget.Output), &stats))
	assert.EqualValues(t, 900, stats["latest_input_tokens"])
	assert.EqualValues(t, 65, stats["cumulative_output_tokens"])
	assert.EqualValues(t, 3, stats["turn_count"])
	assert.Equal(t, "hard", stats["band"])
}

func TestAfterResponse_GarbageNeverBreaksHost(t *testing.T) {
	g := newGuard(t, 1000)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		g.AfterResponse(ctx, struct{ Weird chan int }{})
		g.AfterResponse(ctx, "not json")
	})
	assert.Equal(t, 2, g.Tracker().TurnCount())

	results := g.BeforeRequest(ctx, nil)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ContextInjection, "0% context used")
}

func TestExecuteTool_Unknown(t *testing.T) {
	g := newGuard(t, 1000)

	res := g.ExecuteTool(context.Background(), "nope", nil)
	assert.False(t, res.Success())
}

func TestClose(t *testing.T) {
	g := newGuard(t, 1000)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	assert.Empty(t, g.Hooks().Registrations(core.EventProviderRequest))
	assert.Empty(t, g.Tools().Names())
	assert.Empty(t, g.BeforeRequest(context.Background(), nil))
}

func TestStructuredLoggerComponents(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = &buf
	cfg.Level = logging.LogLevelInfo

	g, err := New(func(o *Options) {
		o.Logger = logging.NewLogger(cfg)
		o.Config = config.Default()
		o.Config.State.Dir = filepath.Join(t.TempDir(), "state")
	})
	require.NoError(t, err)
	defer g.Close()

	assert.Contains(t, buf.String(), `"component":"guardian"`)
	assert.Contains(t, buf.String(), `"component":"session_state"`)
}
