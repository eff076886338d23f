// Package config loads agentguard configuration.
//
// Configuration source priority (highest to lowest):
//  1. Command line flags (cmd/agentguard)
//  2. Environment variables (AGENTGUARD_*)
//  3. Config file (.yaml / .yml / .json / .jsonc) or a host supplied map
//  4. Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentguard/guardian"
	"github.com/hupe1980/agentguard/logging"
	"github.com/hupe1980/agentguard/sessionstate"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("config: invalid configuration")

// GuardianConfig holds the budget tracker settings.
type GuardianConfig struct {
	// ContextWindow in tokens. 0 resolves through Model, then the default.
	ContextWindow int     `yaml:"context_window" json:"context_window"`
	SoftThreshold float64 `yaml:"soft_threshold" json:"soft_threshold"`
	HardThreshold float64 `yaml:"hard_threshold" json:"hard_threshold"`

	// Model selects a known context window when ContextWindow is 0.
	Model string `yaml:"model" json:"model"`

	// Templates overrides individual band messages.
	Templates guardian.Templates `yaml:"templates" json:"templates"`
}

// StateConfig holds the snapshot store settings.
type StateConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level: "debug" | "info" | "warn" | "error"
	Level string `yaml:"level" json:"level"`
	// Format: "json" | "text"
	Format string `yaml:"format" json:"format"`
}

// Config is the complete agentguard configuration.
type Config struct {
	Guardian GuardianConfig `yaml:"guardian" json:"guardian"`
	State    StateConfig    `yaml:"state" json:"state"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Guardian: GuardianConfig{
			SoftThreshold: guardian.DefaultSoftThreshold,
			HardThreshold: guardian.DefaultHardThreshold,
		},
		State: StateConfig{Dir: sessionstate.DefaultDir},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads a config file on top of the defaults. The format follows the
// file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := Default()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, ext)
	}

	return cfg, nil
}

// FromMap builds a configuration from a host supplied map. Guardian keys
// may be given flat ({"context_window": 100000}) or nested under
// "guardian"; "state" and "log" sections are nested.
func FromMap(m map[string]any) (*Config, error) {
	cfg := Default()
	if len(m) == 0 {
		return cfg, nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := json.Unmarshal(data, &cfg.Guardian); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvContextWindow = "AGENTGUARD_CONTEXT_WINDOW"
	EnvSoftThreshold = "AGENTGUARD_SOFT_THRESHOLD"
	EnvHardThreshold = "AGENTGUARD_HARD_THRESHOLD"
	EnvModel         = "AGENTGUARD_MODEL"
	EnvStateDir      = "AGENTGUARD_STATE_DIR"
	EnvLogLevel      = "AGENTGUARD_LOG_LEVEL"
	EnvLogFormat     = "AGENTGUARD_LOG_FORMAT"
)

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	if v, ok := lookup(EnvContextWindow); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvContextWindow, err))
		} else {
			c.Guardian.ContextWindow = n
		}
	}
	if v, ok := lookup(EnvSoftThreshold); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSoftThreshold, err))
		} else {
			c.Guardian.SoftThreshold = f
		}
	}
	if v, ok := lookup(EnvHardThreshold); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvHardThreshold, err))
		} else {
			c.Guardian.HardThreshold = f
		}
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Guardian.Model = v
	}
	if v, ok := lookup(EnvStateDir); ok && v != "" {
		c.State.Dir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// ContextWindow resolves the effective window size.
func (c *Config) ContextWindow() int {
	if c.Guardian.ContextWindow > 0 {
		return c.Guardian.ContextWindow
	}
	if w, ok := guardian.ContextWindowForModel(c.Guardian.Model); ok {
		return w
	}
	return guardian.DefaultContextWindow
}

// Validate reports every problem found, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error

	g := c.Guardian
	if g.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("guardian.context_window must not be negative, got %d", g.ContextWindow))
	}
	if g.SoftThreshold <= 0 || g.SoftThreshold > 1 {
		errs = append(errs, fmt.Errorf("guardian.soft_threshold must be in (0,1], got %g", g.SoftThreshold))
	}
	if g.HardThreshold <= 0 || g.HardThreshold > 1 {
		errs = append(errs, fmt.Errorf("guardian.hard_threshold must be in (0,1], got %g", g.HardThreshold))
	}
	if g.SoftThreshold >= g.HardThreshold {
		errs = append(errs, fmt.Errorf("guardian.soft_threshold (%g) must be below guardian.hard_threshold (%g)", g.SoftThreshold, g.HardThreshold))
	}

	if c.State.Dir == "" {
		errs = append(errs, errors.New("state.dir must not be empty"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// TrackerOptions returns the guardian options described by c.
func (c *Config) TrackerOptions() func(o *guardian.Options) {
	return func(o *guardian.Options) {
		o.ContextWindow = c.ContextWindow()
		o.SoftThreshold = c.Guardian.SoftThreshold
		o.HardThreshold = c.Guardian.HardThreshold
		o.Templates = c.Guardian.Templates
	}
}

// LoggerConfig returns the logger settings described by c. An unparsable
// level falls back to info.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()

	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = lvl
	}
	if c.Log.Format != "" {
		cfg.Format = c.Log.Format
	}

	return cfg
}
