package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentguard"
	"github.com/hupe1980/agentguard/sessionstate"
)

func newStateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Save, load and list session state snapshots",
	}

	cmd.AddCommand(newStateSaveCmd(a))
	cmd.AddCommand(newStateOpCmd(a, sessionstate.OpLoadState, "load", "Print the newest snapshot"))
	cmd.AddCommand(newStateOpCmd(a, sessionstate.OpListStates, "list", "List snapshots, newest first"))

	return cmd
}

func newStateSaveCmd(a *app) *cobra.Command {
	var (
		summary      string
		accomplished []string
		remaining    []string
		decisions    []string
		branch       string
		workDir      string
		files        []string
		sessionID    string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write a new snapshot",
		Example: `  agentguard state save --summary "parser done" \
    --accomplished "lexer" --accomplished "parser" --remaining "codegen"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := map[string]any{
				"operation":    sessionstate.OpSaveState.String(),
				"summary":      summary,
				"accomplished": accomplished,
				"remaining":    remaining,
			}
			if len(decisions) > 0 {
				input["decisions"] = decisions
			}

			ctxInfo := map[string]any{}
			if branch != "" {
				ctxInfo["branch"] = branch
			}
			if workDir != "" {
				ctxInfo["working_directory"] = workDir
			}
			if len(files) > 0 {
				ctxInfo["files_changed"] = files
			}
			if len(ctxInfo) > 0 {
				input["context"] = ctxInfo
			}

			return a.runStateTool(cmd, input, func() string { return sessionID })
		},
	}

	cmd.Flags().StringVar(&summary, "summary", "", "what was accomplished this session")
	cmd.Flags().StringArrayVar(&accomplished, "accomplished", nil, "completed item (repeatable)")
	cmd.Flags().StringArrayVar(&remaining, "remaining", nil, "item still to do (repeatable)")
	cmd.Flags().StringArrayVar(&decisions, "decision", nil, "key decision (repeatable)")
	cmd.Flags().StringVar(&branch, "branch", "", "current VCS branch")
	cmd.Flags().StringVar(&workDir, "working-directory", "", "working directory of the session")
	cmd.Flags().StringArrayVar(&files, "file-changed", nil, "changed file (repeatable)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id stored with the snapshot")

	return cmd
}

func newStateOpCmd(a *app, op sessionstate.Operation, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStateTool(cmd, map[string]any{"operation": op.String()}, nil)
		},
	}
}

// runStateTool executes the session_state tool through the façade so the CLI
// prints exactly what a model would see.
func (a *app) runStateTool(cmd *cobra.Command, input map[string]any, sessionID func() string) error {
	g, err := agentguard.New(func(o *agentguard.Options) {
		o.Config = a.cfg
		o.Logger = a.logger
		o.SessionID = sessionID
	})
	if err != nil {
		return err
	}
	defer g.Close()

	res := g.ExecuteTool(cmd.Context(), sessionstate.ToolName, input)
	if !res.Success() {
		return errors.New(res.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Output)

	return nil
}
