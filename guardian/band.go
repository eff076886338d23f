package guardian

import (
	"encoding/json"

	"github.com/hupe1980/agentguard/core"
)

// Band is one of the three mutually exclusive usage ranges.
type Band int

const (
	// BandInfo covers usage below the soft threshold.
	BandInfo Band = iota
	// BandSoft covers soft <= usage < hard.
	BandSoft
	// BandHard covers usage at or above the hard threshold.
	BandHard
)

// String returns the band name.
func (b Band) String() string {
	switch b {
	case BandInfo:
		return "info"
	case BandSoft:
		return "soft"
	case BandHard:
		return "hard"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the band by name.
func (b Band) MarshalJSON() ([]byte, error) { return json.Marshal(b.String()) }

// Decide maps a usage fraction to its band. Intervals are closed below and
// open above, so pct == soft is BandSoft and pct == hard is BandHard.
func Decide(pct, soft, hard float64) Band {
	switch {
	case pct < soft:
		return BandInfo
	case pct < hard:
		return BandSoft
	default:
		return BandHard
	}
}

// Decision is the rendered outcome of a provider:request evaluation.
type Decision struct {
	Band        Band              `json:"band"`
	Percent     int               `json:"percent"`
	Turn        int               `json:"turn"`
	Injection   string            `json:"injection"`
	UserMessage string            `json:"user_message,omitempty"`
	Level       core.MessageLevel `json:"level,omitempty"`
}

// HookResult converts the decision into the host result: always an
// ephemeral system injection, plus a user message outside the info band.
func (d Decision) HookResult() core.HookResult {
	res := core.InjectSystem(d.Injection)
	if d.UserMessage != "" {
		res = res.WithUserMessage(d.UserMessage, d.Level)
	}
	return res
}
