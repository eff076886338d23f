package anthropic

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentguard"
	"github.com/hupe1980/agentguard/config"
	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/internal/testutil"
	"github.com/hupe1980/agentguard/model"
)

func textReply(text string, input, output int) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",` +
		`"content":[{"type":"text","text":"` + text + `"}],"stop_reason":"end_turn",` +
		`"usage":{"input_tokens":` + strconv.Itoa(input) + `,"output_tokens":` + strconv.Itoa(output) + `}}`
}

func newGuard(t *testing.T) *agentguard.AgentGuard {
	t.Helper()

	cfg := config.Default()
	cfg.Guardian.ContextWindow = 1000
	cfg.State.Dir = filepath.Join(t.TempDir(), ".session-state")

	g, err := agentguard.New(func(o *agentguard.Options) { o.Config = cfg })
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	return g
}

func systemText(t *testing.T, req map[string]any) string {
	t.Helper()

	blocks, ok := req["system"].([]any)
	require.True(t, ok, "system blocks missing: %v", req)
	require.Len(t, blocks, 1)

	return blocks[0].(map[string]any)["text"].(string)
}

func TestSend_InjectsBandIntoSystemPrompt(t *testing.T) {
	srv := testutil.NewProviderServer(t, textReply("hello", 650, 10), textReply("again", 900, 5))
	g := newGuard(t)

	m := NewModel(g, func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
		o.System = "You are helpful."
	})

	ctx := context.Background()
	msgs := []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("hi"))}

	turn, err := m.Send(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, "hello", turn.Text())
	assert.Equal(t, []string{"[Session Guardian: 0% context used, turn 0]"}, turn.Injections.System)
	assert.Empty(t, turn.Injections.Notices)
	assert.Empty(t, turn.ToolCalls)

	assert.Equal(t, 650, g.Tracker().LatestInputTokens())
	assert.Equal(t, 1, g.Tracker().TurnCount())

	turn, err = m.Send(ctx, msgs)
	require.NoError(t, err)
	require.Len(t, turn.Injections.System, 1)
	assert.Contains(t, turn.Injections.System[0], "65% context. Save progress with session_state tool now.")
	assert.Equal(t, []model.Notice{{
		Text:  "Session Guardian: 65% context used, saving progress recommended",
		Level: core.LevelWarning,
	}}, turn.Injections.Notices)

	assert.Equal(t, 900, g.Tracker().LatestInputTokens())
	assert.Equal(t, 15, g.Tracker().CumulativeOutputTokens())

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "You are helpful.\n\n[Session Guardian: 0% context used, turn 0]", systemText(t, reqs[0]))
	assert.Contains(t, systemText(t, reqs[1]), "You are helpful.\n\n[Session Guardian: 65% context.")
	assert.Equal(t, "claude-3-5-haiku-latest", reqs[0]["model"])
}

func TestSend_ToolRoundTrip(t *testing.T) {
	toolUse := `{"id":"msg_2","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",` +
		`"content":[{"type":"text","text":"checking"},` +
		`{"type":"tool_use","id":"toolu_1","name":"context_budget","input":{}}],` +
		`"stop_reason":"tool_use","usage":{"input_tokens":100,"output_tokens":20}}`

	srv := testutil.NewProviderServer(t, toolUse, textReply("done", 180, 4))
	g := newGuard(t)

	m := NewModel(g, func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
		o.Tools = g.Tools()
	})

	ctx := context.Background()
	msgs := []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("how much budget is left?"))}

	turn, err := m.Send(ctx, msgs)
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "toolu_1", turn.ToolCalls[0].ID)
	assert.Equal(t, agentguard.BudgetToolName, turn.ToolCalls[0].Name)
	assert.JSONEq(t, `{}`, string(turn.ToolCalls[0].Arguments))

	outcomes := model.RunTools(ctx, g, turn.ToolCalls)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Result.Success(), outcomes[0].Result.Error)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(outcomes[0].Content()), &stats))
	assert.EqualValues(t, 100, stats["latest_input_tokens"])

	msgs = append(msgs, AssistantMessage(turn.Message), ToolResultMessage(outcomes))

	turn, err = m.Send(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, "done", turn.Text())

	reqs := srv.Requests()
	require.Len(t, reqs, 2)

	tools := reqs[0]["tools"].([]any)
	require.Len(t, tools, 2)
	assert.Equal(t, agentguard.BudgetToolName, tools[0].(map[string]any)["name"])
	assert.Equal(t, "session_state", tools[1].(map[string]any)["name"])
	assert.NotEmpty(t, tools[1].(map[string]any)["description"])

	sent := reqs[1]["messages"].([]any)
	require.Len(t, sent, 3)

	assistant := sent[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	assert.Len(t, assistant["content"], 2)

	result := sent[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_1", result["tool_use_id"])
}

func TestSend_APIError(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	g := newGuard(t)

	client := anthropic.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	m := NewModelFromClient(&client, g)

	_, err := m.Send(context.Background(), []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock("hi")),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")
	assert.Equal(t, 0, g.Tracker().TurnCount())
}

func TestSend_NoMessages(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	m := NewModel(newGuard(t), func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	_, err := m.Send(context.Background(), nil)
	assert.EqualError(t, err, "anthropic: no messages provided")
	assert.Empty(t, srv.Requests())
}
