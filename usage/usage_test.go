package usage

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterOnly struct{}

func (counterOnly) InputTokenCount() int { return 42 }

type hostUsage struct {
	InputTokens  int64
	OutputTokens int64
}

type hostResponse struct {
	ID    string
	Usage *hostUsage
}

type openAIStyle struct {
	PromptTokens     int
	CompletionTokens int
}

func TestExtract_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Tokens
	}{
		{"nil", nil, Tokens{}},
		{"tokens", Tokens{Input: 1, Output: 2}, Tokens{Input: 1, Output: 2}},
		{"tokens pointer", &Tokens{Input: 3, Output: 4}, Tokens{Input: 3, Output: 4}},
		{"nil tokens pointer", (*Tokens)(nil), Tokens{}},
		{"map", map[string]any{"input_tokens": 1000, "output_tokens": 50}, Tokens{Input: 1000, Output: 50}},
		{"map float64", map[string]any{"input_tokens": 1000.0, "output_tokens": 50.0}, Tokens{Input: 1000, Output: 50}},
		{"map only output", map[string]any{"output_tokens": 7}, Tokens{Output: 7}},
		{"map prompt keys", map[string]any{"prompt_tokens": 9, "completion_tokens": 8}, Tokens{Input: 9, Output: 8}},
		{"map nested usage", map[string]any{"usage": map[string]any{"input_tokens": 5}}, Tokens{Input: 5}},
		{"map wrong value type", map[string]any{"input_tokens": []int{1}, "output_tokens": 3}, Tokens{Output: 3}},
		{"map json.Number", map[string]any{"input_tokens": json.Number("12")}, Tokens{Input: 12}},
		{"typed map", map[string]int{"input_tokens": 11, "output_tokens": 1}, Tokens{Input: 11, Output: 1}},
		{"anthropic usage", anthropic.Usage{InputTokens: 1200, OutputTokens: 30}, Tokens{Input: 1200, Output: 30}},
		{"anthropic usage pointer", &anthropic.Usage{InputTokens: 1, OutputTokens: 2}, Tokens{Input: 1, Output: 2}},
		{"anthropic message", anthropic.Message{Usage: anthropic.Usage{InputTokens: 7, OutputTokens: 8}}, Tokens{Input: 7, Output: 8}},
		{"openai usage", openai.CompletionUsage{PromptTokens: 300, CompletionTokens: 20}, Tokens{Input: 300, Output: 20}},
		{"openai completion", &openai.ChatCompletion{Usage: openai.CompletionUsage{PromptTokens: 4, CompletionTokens: 5}}, Tokens{Input: 4, Output: 5}},
		{"openai chunk", openai.ChatCompletionChunk{Usage: openai.CompletionUsage{PromptTokens: 6}}, Tokens{Input: 6}},
		{"raw json", json.RawMessage(`{"input_tokens":100,"output_tokens":10}`), Tokens{Input: 100, Output: 10}},
		{"raw json nested", []byte(`{"id":"msg_1","usage":{"input_tokens":80,"output_tokens":4}}`), Tokens{Input: 80, Output: 4}},
		{"json string openai", `{"usage":{"prompt_tokens":70,"completion_tokens":3}}`, Tokens{Input: 70, Output: 3}},
		{"json string message wrapper", `{"message":{"usage":{"input_tokens":60}}}`, Tokens{Input: 60}},
		{"capability interface", counterOnly{}, Tokens{Input: 42}},
		{"host struct", hostResponse{Usage: &hostUsage{InputTokens: 90, OutputTokens: 9}}, Tokens{Input: 90, Output: 9}},
		{"host struct nil usage", hostResponse{}, Tokens{}},
		{"openai style struct", &openAIStyle{PromptTokens: 5, CompletionTokens: 6}, Tokens{Input: 5, Output: 6}},
		{"negative clamped", map[string]any{"input_tokens": -5, "output_tokens": -1}, Tokens{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.in))
		})
	}
}

func TestParse_Degrades(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"int", 12},
		{"invalid json", `{"input_tokens":`},
		{"slice", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.Error(t, err)
			assert.Equal(t, Tokens{}, got)
		})
	}
}

func TestParse_NoErrorForKnownShapes(t *testing.T) {
	_, err := Parse(map[string]any{"input_tokens": 1})
	assert.NoError(t, err)

	_, err = Parse(nil)
	assert.NoError(t, err)
}
