// Package guardian watches how much of the model context window a session
// consumes and, before every outgoing request, tells the agent (and the user)
// how close the session is to running out of room.
//
// The Tracker observes provider responses (provider:response) and keeps the
// most recent input token count. Providers resend the full conversation on
// every turn, so the latest input count already is the current window usage;
// it is overwritten, never summed. Output tokens are summed for diagnostics
// only and never influence a decision.
//
// On every request (provider:request) the tracker picks exactly one band:
//
//	usage <  soft          informational status injection
//	soft  <= usage < hard  save-progress injection + warning message
//	usage >= hard          handoff injection + error message
//
// Handlers never propagate failures to the host. Everything that goes wrong
// inside them is logged at debug level and replaced by core.Continue().
package guardian

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/usage"
)

// Defaults applied when an option is left at its zero value.
const (
	DefaultContextWindow = 200_000
	DefaultSoftThreshold = 0.60
	DefaultHardThreshold = 0.80
)

// ErrInvalidConfig is wrapped by NewTracker when options are out of range.
var ErrInvalidConfig = errors.New("guardian: invalid configuration")

// Options configures a Tracker.
type Options struct {
	// ContextWindow is the maximum number of tokens the model accepts.
	ContextWindow int
	// SoftThreshold and HardThreshold are fractions of the window in (0,1].
	SoftThreshold float64
	HardThreshold float64
	// Templates overrides individual band messages. Empty fields keep the default.
	Templates Templates
	Logger    logging.Logger
}

// Tracker is the per-session token budget guardian.
//
// It holds plain counters without synchronization: the host must deliver at
// most one event at a time for a given tracker.
type Tracker struct {
	contextWindow int
	softThreshold float64
	hardThreshold float64

	latestInputTokens      int
	cumulativeOutputTokens int
	turnCount              int

	messages *messageSet
	logger   logging.Logger
}

// NewTracker creates a tracker. Zero-valued options fall back to the defaults.
func NewTracker(optFns ...func(o *Options)) (*Tracker, error) {
	opts := Options{
		ContextWindow: DefaultContextWindow,
		SoftThreshold: DefaultSoftThreshold,
		HardThreshold: DefaultHardThreshold,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := validate(opts); err != nil {
		return nil, err
	}

	messages, err := newMessageSet(opts.Templates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Tracker{
		contextWindow: opts.ContextWindow,
		softThreshold: opts.SoftThreshold,
		hardThreshold: opts.HardThreshold,
		messages:      messages,
		logger:        logging.OrNoOp(opts.Logger),
	}, nil
}

func validate(opts Options) error {
	if opts.ContextWindow <= 0 {
		return fmt.Errorf("%w: context_window must be positive, got %d", ErrInvalidConfig, opts.ContextWindow)
	}

	if opts.SoftThreshold <= 0 || opts.SoftThreshold > 1 {
		return fmt.Errorf("%w: soft_threshold must be in (0,1], got %g", ErrInvalidConfig, opts.SoftThreshold)
	}

	if opts.HardThreshold <= 0 || opts.HardThreshold > 1 {
		return fmt.Errorf("%w: hard_threshold must be in (0,1], got %g", ErrInvalidConfig, opts.HardThreshold)
	}

	if opts.SoftThreshold >= opts.HardThreshold {
		return fmt.Errorf("%w: soft_threshold (%g) must be below hard_threshold (%g)", ErrInvalidConfig, opts.SoftThreshold, opts.HardThreshold)
	}

	return nil
}

// ContextWindow returns the configured window size.
func (t *Tracker) ContextWindow() int { return t.contextWindow }

// SoftThreshold returns the soft warning fraction.
func (t *Tracker) SoftThreshold() float64 { return t.softThreshold }

// HardThreshold returns the hard warning fraction.
func (t *Tracker) HardThreshold() float64 { return t.hardThreshold }

// LatestInputTokens returns the most recent strictly positive input count.
func (t *Tracker) LatestInputTokens() int { return t.latestInputTokens }

// CumulativeOutputTokens returns the sum of output tokens over all turns.
func (t *Tracker) CumulativeOutputTokens() int { return t.cumulativeOutputTokens }

// TurnCount returns the number of observed responses.
func (t *Tracker) TurnCount() int { return t.turnCount }

// UsagePct returns latest input tokens as a fraction of the context window.
func (t *Tracker) UsagePct() float64 {
	if t.contextWindow <= 0 {
		return 0
	}
	return float64(t.latestInputTokens) / float64(t.contextWindow)
}

// PercentInt returns floor(UsagePct * 100), computed on integers.
func (t *Tracker) PercentInt() int {
	if t.contextWindow <= 0 {
		return 0
	}
	return t.latestInputTokens * 100 / t.contextWindow
}

// Stats is a point-in-time copy of the tracker counters.
type Stats struct {
	ContextWindow          int     `json:"context_window"`
	SoftThreshold          float64 `json:"soft_threshold"`
	HardThreshold          float64 `json:"hard_threshold"`
	LatestInputTokens      int     `json:"latest_input_tokens"`
	CumulativeOutputTokens int     `json:"cumulative_output_tokens"`
	TurnCount              int     `json:"turn_count"`
	UsagePct               float64 `json:"usage_pct"`
	Band                   Band    `json:"band"`
}

// Stats returns a copy of the current counters.
func (t *Tracker) Stats() Stats {
	pct := t.UsagePct()
	return Stats{
		ContextWindow:          t.contextWindow,
		SoftThreshold:          t.softThreshold,
		HardThreshold:          t.hardThreshold,
		LatestInputTokens:      t.latestInputTokens,
		CumulativeOutputTokens: t.cumulativeOutputTokens,
		TurnCount:              t.turnCount,
		UsagePct:               pct,
		Band:                   Decide(pct, t.softThreshold, t.hardThreshold),
	}
}

// Observe records the token counts of one provider response.
func (t *Tracker) Observe(tokens usage.Tokens) {
	if tokens.Input > 0 {
		t.latestInputTokens = tokens.Input
	}
	if tokens.Output > 0 {
		t.cumulativeOutputTokens += tokens.Output
	}
	t.turnCount++

	t.logger.Debug("guardian.response",
		"turn", t.turnCount,
		"input", t.latestInputTokens,
		"cumulative_output", t.cumulativeOutputTokens,
		"pct", t.UsagePct()*100,
	)
}

// Evaluate picks the band for the current usage and renders its messages.
func (t *Tracker) Evaluate() (Decision, error) {
	pct := t.UsagePct()
	data := MessageData{
		Percent:       t.PercentInt(),
		Turn:          t.turnCount,
		InputTokens:   t.latestInputTokens,
		ContextWindow: t.contextWindow,
		Tool:          StateToolName,
	}

	d := Decision{
		Band:    Decide(pct, t.softThreshold, t.hardThreshold),
		Percent: data.Percent,
		Turn:    data.Turn,
	}

	if err := t.messages.render(&d, data); err != nil {
		return Decision{}, err
	}

	return d, nil
}

// OnResponse handles provider:response. It only observes and always lets
// the host continue.
func (t *Tracker) OnResponse(_ context.Context, data core.HookData) core.HookResult {
	return t.guard(ResponseHookName, func() (core.HookResult, error) {
		raw, _ := data.Get("usage")

		tokens, err := usage.Parse(raw)
		if err != nil {
			t.logger.Debug("guardian.usage.degraded", "error", err.Error())
		}

		t.Observe(tokens)

		return core.Continue(), nil
	})
}

// OnRequest handles provider:request and returns the band injection.
func (t *Tracker) OnRequest(_ context.Context, _ core.HookData) core.HookResult {
	return t.guard(RequestHookName, func() (core.HookResult, error) {
		d, err := t.Evaluate()
		if err != nil {
			return core.Continue(), err
		}

		if hl, ok := t.logger.(logging.HookDecisionLogger); ok {
			hl.LogHookDecision(RequestHookName, d.Band.String(), t.UsagePct(), d.Turn)
		} else {
			t.logger.Debug("guardian.request", "band", d.Band.String(), "pct", d.Percent, "turn", d.Turn)
		}

		return d.HookResult(), nil
	})
}

// guard is the recovery boundary between the tracker and the host. Errors
// and panics inside fn are logged at debug level and become core.Continue().
func (t *Tracker) guard(name string, fn func() (core.HookResult, error)) (res core.HookResult) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Debug("guardian.handler.recovered", "handler", name, "panic", fmt.Sprint(p))
			res = core.Continue()
		}
	}()

	res, err := fn()
	if err != nil {
		t.logger.Debug("guardian.handler.failed", "handler", name, "error", err.Error())
		return core.Continue()
	}

	return res
}
