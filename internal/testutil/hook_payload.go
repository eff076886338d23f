package testutil

import "github.com/hupe1980/agentguard/core"

// ResponsePayload builds a provider:response payload with a map usage value.
func ResponsePayload(input, output int) core.HookData {
	return core.HookData{
		"usage": map[string]any{
			"input_tokens":  input,
			"output_tokens": output,
		},
	}
}
