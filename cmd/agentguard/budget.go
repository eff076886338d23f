package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/guardian"
	"github.com/hupe1980/agentguard/usage"
)

func newBudgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Evaluate context budget decisions",
	}

	cmd.PersistentFlags().String("model", "", "model id used to pick the context window")
	cmd.PersistentFlags().Int("window", 0, "context window in tokens (overrides --model)")

	cmd.AddCommand(newBudgetCheckCmd(a))
	cmd.AddCommand(newBudgetReplayCmd(a))

	return cmd
}

// tracker builds a tracker from the loaded config plus --model / --window.
func (a *app) tracker(cmd *cobra.Command) (*guardian.Tracker, error) {
	cfg := *a.cfg

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Guardian.Model = model
		if _, ok := guardian.ContextWindowForModel(model); !ok {
			a.logger.Warn("cli.model.unknown", "model", model, "fallback_window", cfg.ContextWindow())
		}
	}
	if window, _ := cmd.Flags().GetInt("window"); window > 0 {
		cfg.Guardian.ContextWindow = window
	}

	return guardian.NewTracker(cfg.TrackerOptions(), func(o *guardian.Options) { o.Logger = a.logger })
}

func newBudgetCheckCmd(a *app) *cobra.Command {
	var (
		input  int
		output int
		turn   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the band and messages for a given input token count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.tracker(cmd)
			if err != nil {
				return err
			}

			// The first observation carries the counts; the rest only advance the turn.
			t.Observe(usage.Tokens{Input: input, Output: output})
			for i := 1; i < turn; i++ {
				t.Observe(usage.Tokens{})
			}

			d, err := t.Evaluate()
			if err != nil {
				return err
			}

			return printDecision(cmd.OutOrStdout(), t, d, asJSON)
		},
	}

	cmd.Flags().IntVar(&input, "input", 0, "latest input token count")
	cmd.Flags().IntVar(&output, "output", 0, "output token count")
	cmd.Flags().IntVar(&turn, "turn", 1, "turn number to report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func printDecision(w io.Writer, t *guardian.Tracker, d guardian.Decision, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			guardian.Decision
			Result core.HookResult `json:"result"`
		}{d, d.HookResult()})
	}

	fmt.Fprintf(w, "band:      %s\n", d.Band)
	fmt.Fprintf(w, "usage:     %d%% of %d tokens\n", d.Percent, t.ContextWindow())
	fmt.Fprintf(w, "injection: %s\n", d.Injection)
	if d.UserMessage != "" {
		fmt.Fprintf(w, "message:   [%s] %s\n", d.Level, d.UserMessage)
	}

	return nil
}

func newBudgetReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay provider usage payloads (one JSON document per line)",
		Long: "replay feeds every line as a provider:response usage payload into a fresh " +
			"tracker and prints the decision the next provider:request would get. " +
			"Reads stdin when file is omitted or \"-\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			t, err := a.tracker(cmd)
			if err != nil {
				return err
			}

			return replay(cmd, t, in)
		},
	}
}

func replay(cmd *cobra.Command, t *guardian.Tracker, in io.Reader) error {
	w := cmd.OutOrStdout()
	ctx := cmd.Context()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		t.OnResponse(ctx, core.HookData{"usage": json.RawMessage(line)})
		res := t.OnRequest(ctx, nil)

		band := guardian.Decide(t.UsagePct(), t.SoftThreshold(), t.HardThreshold())
		fmt.Fprintf(w, "turn %d\tinput %d\t%d%%\t%s", t.TurnCount(), t.LatestInputTokens(), t.PercentInt(), band)
		if res.HasUserMessage() {
			fmt.Fprintf(w, "\t%s", res.UserMessage)
		}
		fmt.Fprintln(w)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading usage payloads: %w", err)
	}

	stats := t.Stats()
	fmt.Fprintf(w, "total\tturns %d\tlatest input %d\tcumulative output %d\n",
		stats.TurnCount, stats.LatestInputTokens, stats.CumulativeOutputTokens)

	return nil
}
