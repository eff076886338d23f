package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentguard/config"
	"github.com/hupe1980/agentguard/logging"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	cfgFile   string
	stateDir  string
	logLevel  string
	logFormat string

	lookupEnv func(string) (string, bool)

	cfg    *config.Config
	logger logging.Logger
}

func newRootCmd(version, commit, date string) *cobra.Command {
	a := &app{lookupEnv: os.LookupEnv}

	rootCmd := &cobra.Command{
		Use:   "agentguard",
		Short: "Context budget guardian and session state tooling",
		Long: "agentguard manages session state snapshots for clean handoff between " +
			"agent sessions and evaluates context window budget decisions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (.yaml, .yml, .json, .jsonc)")
	rootCmd.PersistentFlags().StringVar(&a.stateDir, "state-dir", "", "snapshot directory (default .session-state)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json or text")

	rootCmd.AddCommand(newStateCmd(a))
	rootCmd.AddCommand(newBudgetCmd(a))
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	return rootCmd
}

// init loads configuration, applying environment and CLI flag overrides.
func (a *app) init(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.cfgFile != "" {
		loaded, err := config.Load(a.cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}

	// CLI flags override config values
	if a.stateDir != "" {
		cfg.State.Dir = a.stateDir
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logCfg.Component = "cli"

	a.cfg = cfg
	a.logger = logging.NewLogger(logCfg)

	return nil
}
