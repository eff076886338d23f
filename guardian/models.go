package guardian

import "strings"

// modelContextWindows maps model identifiers to context window sizes in
// tokens. Unknown models fall back to the configured or default window.
var modelContextWindows = map[string]int{
	// Anthropic Claude.
	"claude-opus-4-1":            200_000,
	"claude-opus-4-20250514":     200_000,
	"claude-sonnet-4-20250514":   200_000,
	"claude-sonnet-4-5-20250929": 200_000,
	"claude-haiku-4-5-20251001":  200_000,
	"claude-3-7-sonnet-20250219": 200_000,
	"claude-3-5-sonnet-20241022": 200_000,
	"claude-3-5-haiku-20241022":  200_000,
	"claude-3-opus-20240229":     200_000,

	// OpenAI.
	"gpt-4o":       128_000,
	"gpt-4o-mini":  128_000,
	"gpt-4-turbo":  128_000,
	"gpt-4":        8_192,
	"gpt-4.1":      1_047_576,
	"gpt-4.1-mini": 1_047_576,
	"o1":           200_000,
	"o3":           200_000,
	"o3-mini":      200_000,
	"o4-mini":      200_000,

	// DeepSeek.
	"deepseek-chat":     64_000,
	"deepseek-reasoner": 64_000,

	// Google Gemini.
	"gemini-2.5-pro":   1_048_576,
	"gemini-2.5-flash": 1_048_576,
}

// ContextWindowForModel returns the window size for a known model id. Dated
// variants resolve through their family prefix ("claude-3-5-haiku-latest").
func ContextWindowForModel(model string) (int, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return 0, false
	}

	if w, ok := modelContextWindows[model]; ok {
		return w, true
	}

	best, bestLen := 0, 0
	for id, w := range modelContextWindows {
		family := familyOf(id)
		if strings.HasPrefix(model, family) && len(family) > bestLen {
			best, bestLen = w, len(family)
		}
	}

	return best, bestLen > 0
}

// familyOf strips a trailing -YYYYMMDD date stamp.
func familyOf(id string) string {
	if i := strings.LastIndex(id, "-"); i > 0 && len(id)-i-1 == 8 {
		return id[:i]
	}
	return id
}
