// Package openai wraps the OpenAI Chat Completions API so that every request
// runs through a model.Guard. Budget injections become a leading system
// message and the completion usage is reported back to the tracker.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/model"
)

// Options configure the OpenAI adapter.
type Options struct {
	Model               string
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string

	// System is the host's own system prompt; injections are appended to it.
	System string

	// Tools exposed to the model on every request.
	Tools model.ToolSource

	Logger logging.Logger
}

// Model sends guarded chat completion requests through the official client.
type Model struct {
	client *openai.Client
	guard  model.Guard
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 4096,
		Logger:              logging.NoOpLogger{},
	}
}

// NewModel creates a guarded model using a new official client.
func NewModel(guard model.Guard, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	return newModel(&client, guard, opts)
}

// NewModelFromClient creates a guarded model from an existing client.
func NewModelFromClient(client *openai.Client, guard model.Guard, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return newModel(client, guard, opts)
}

func newModel(client *openai.Client, guard model.Guard, opts Options) *Model {
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Model{client: client, guard: guard, opts: opts}
}

// Turn is the outcome of one guarded request.
type Turn struct {
	Completion *openai.ChatCompletion

	// Injections applied to the request that produced Completion.
	Injections model.Injections

	ToolCalls []model.ToolCall
}

// Message returns the first choice's message.
func (t *Turn) Message() openai.ChatCompletionMessage {
	return t.Completion.Choices[0].Message
}

// Send publishes provider:request, sends messages with the injected system
// message in front, and publishes provider:response with the completion.
// messages must not carry the system prompt; set Options.System instead.
func (m *Model) Send(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*Turn, error) {
	if len(messages) == 0 {
		return nil, errors.New("openai: no messages provided")
	}

	inj := model.Collect(m.guard.BeforeRequest(ctx, map[string]any{
		"provider": "openai",
		"model":    m.opts.Model,
		"messages": len(messages),
	}))

	params := openai.ChatCompletionNewParams{
		Model:               m.opts.Model,
		Messages:            withSystem(inj.SystemPrompt(m.opts.System), messages),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	if defs := model.Definitions(m.opts.Tools); len(defs) > 0 {
		params.Tools = buildTools(defs)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	// Usage is reported even when the completion carries no choices.
	m.guard.AfterResponse(ctx, resp)

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	turn := &Turn{Completion: resp, Injections: inj}

	for _, tc := range resp.Choices[0].Message.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}

	m.opts.Logger.Debug("openai.turn",
		"model", m.opts.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"injections", len(inj.System),
		"tool_calls", len(turn.ToolCalls),
	)

	return turn, nil
}

// ToolMessages converts tool outcomes into tool role messages, one per call.
func ToolMessages(outcomes []model.ToolOutcome) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(outcomes))
	for _, o := range outcomes {
		messages = append(messages, openai.ToolMessage(o.Content(), o.Call.ID))
	}

	return messages
}

func withSystem(system string, messages []openai.ChatCompletionMessageParamUnion) []openai.ChatCompletionMessageParamUnion {
	if system == "" {
		return messages
	}

	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	out = append(out, openai.SystemMessage(system))

	return append(out, messages...)
}

// buildTools converts tool definitions to OpenAI function tools.
func buildTools(defs []model.FunctionDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(defs))
	for i, def := range defs {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.Parameters,
			},
		}
	}

	return tools
}
