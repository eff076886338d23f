// Package anthropic wraps the Anthropic Messages API so that every request
// runs through a model.Guard: budget injections are added to the system
// prompt and the response usage is reported back to the tracker.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/model"
)

// Options configures the Anthropic adapter (model id, max tokens, API key,
// base system prompt).
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
	BaseURL   string

	// System is the host's own system prompt; injections are appended to it.
	System string

	// Tools exposed to the model on every request.
	Tools model.ToolSource

	Logger logging.Logger
}

// Model sends guarded requests through the official client.
type Model struct {
	client *anthropic.Client
	guard  model.Guard
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 4096,
		Logger:    logging.NoOpLogger{},
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

	client := anthropic.NewClient(clientOpts...)

	return newModel(&client, guard, opts)
}

// NewModelFromClient creates a guarded model from an existing client.
func NewModelFromClient(client *anthropic.Client, guard model.Guard, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return newModel(client, guard, opts)
}

func newModel(client *anthropic.Client, guard model.Guard, opts Options) *Model {
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Model{client: client, guard: guard, opts: opts}
}

// Turn is the outcome of one guarded request.
type Turn struct {
	Message *anthropic.Message

	// Injections applied to the request that produced Message.
	Injections model.Injections

	ToolCalls []model.ToolCall
}

// Text concatenates all text blocks of the reply.
func (t *Turn) Text() string {
	var text string
	for _, block := range t.Message.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text
}

// Send publishes provider:request, sends messages with the injected system
// prompt, and publishes provider:response with the returned message.
func (m *Model) Send(ctx context.Context, messages []anthropic.MessageParam) (*Turn, error) {
	if len(messages) == 0 {
		return nil, errors.New("anthropic: no messages provided")
	}

	inj := model.Collect(m.guard.BeforeRequest(ctx, map[string]any{
		"provider": "anthropic",
		"model":    string(m.opts.Model),
		"messages": len(messages),
	}))

	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  messages,
		MaxTokens: m.opts.MaxTokens,
	}

	if system := inj.SystemPrompt(m.opts.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if defs := model.Definitions(m.opts.Tools); len(defs) > 0 {
		params.Tools = buildTools(defs)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	m.guard.AfterResponse(ctx, resp)

	turn := &Turn{Message: resp, Injections: inj}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}

		toolBlock := block.AsToolUse()

		args, err := json.Marshal(toolBlock.Input)
		if err != nil {
			m.opts.Logger.Warn("anthropic.tool_use.arguments", "tool", toolBlock.Name, "error", err)
			args = []byte("{}")
		}

		turn.ToolCalls = append(turn.ToolCalls, model.ToolCall{
			ID:        toolBlock.ID,
			Name:      toolBlock.Name,
			Arguments: args,
		})
	}

	m.opts.Logger.Debug("anthropic.turn",
		"model", string(m.opts.Model),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"injections", len(inj.System),
		"tool_calls", len(turn.ToolCalls),
	)

	return turn, nil
}

// AssistantMessage converts the text and tool_use blocks of a reply back into
// a request message so the conversation can continue.
func AssistantMessage(msg *anthropic.Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			blocks = append(blocks, anthropic.NewToolUseBlock(toolBlock.ID, toolBlock.Input, toolBlock.Name))
		}
	}

	return anthropic.NewAssistantMessage(blocks...)
}

// ToolResultMessage wraps tool outcomes into the user message Anthropic
// expects after a tool_use turn.
func ToolResultMessage(outcomes []model.ToolOutcome) anthropic.MessageParam {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(outcomes))
	for _, o := range outcomes {
		blocks = append(blocks, anthropic.NewToolResultBlock(o.Call.ID, o.Content(), !o.Result.Success()))
	}

	return anthropic.NewUserMessage(blocks...)
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(defs []model.FunctionDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))

	for i, def := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if properties, ok := def.Parameters["properties"]; ok {
			inputSchema.Properties = properties
		}

		switch required := def.Parameters["required"].(type) {
		case []string:
			inputSchema.Required = required
		case []any:
			for _, r := range required {
				if s, ok := r.(string); ok {
					inputSchema.Required = append(inputSchema.Required, s)
				}
			}
		}

		tu := anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
		if tu.OfTool != nil && def.Description != "" {
			tu.OfTool.Description = anthropic.String(def.Description)
		}
		tools[i] = tu
	}

	return tools
}
