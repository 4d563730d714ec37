// ABOUTME: Configuration loading and parsing for tradewind
// ABOUTME: Supports TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"tradewind/internal/extension"
)

// DefaultPath is where the runtime looks for configuration when no
// --config flag is given.
const DefaultPath = "tradewind.config.toml"

// Config represents the complete tradewind configuration.
type Config struct {
	Environment EnvironmentConfig          `toml:"environment"`
	Model       map[string]any             `toml:"model"`
	Agent       AgentConfig                `toml:"agent"`
	Extensions  map[string]ExtensionConfig `toml:"extensions"`
	Logging     LoggingConfig              `toml:"logging"`
}

// EnvironmentConfig holds workspace paths. Runtime state (journal database,
// logs) lives under <cwd>/<project>/.tradewind.
type EnvironmentConfig struct {
	Cwd     string `toml:"cwd"`
	Project string `toml:"project"`
}

// AgentConfig holds the agent policy: which namespaces are switched on and
// how long hooks and calls may run.
type AgentConfig struct {
	PermissionMode   string        `toml:"permission_mode"`
	ExtensionEnabled []string      `toml:"extension_enabled"`
	InitTimeout      time.Duration `toml:"-"`
	CallTimeout      time.Duration `toml:"-"`

	// Raw string values for TOML unmarshaling
	InitTimeoutRaw string `toml:"init_timeout"`
	CallTimeoutRaw string `toml:"call_timeout"`
}

// ExtensionConfig is one [extensions.<namespace>] section. Options is the
// namespace's private configuration, handed to its init hook and never
// logged verbatim.
type ExtensionConfig struct {
	Location string         `toml:"location"`
	Options  map[string]any `toml:"options"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw TOML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := toml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the built-in defaults applied. Loading a
// file overlays on top of these.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{Cwd: "."},
		Agent: AgentConfig{
			PermissionMode: "ask",
			InitTimeout:    extension.DefaultInitTimeout,
			CallTimeout:    extension.DefaultCallTimeout,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// DataDir is where builtin modules keep local state.
func (c *Config) DataDir() string {
	return filepath.Join(c.Environment.Cwd, c.Environment.Project, ".tradewind")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Environment.Cwd == "" {
		return fmt.Errorf("environment.cwd is required")
	}

	switch c.Agent.PermissionMode {
	case "", "ask", "auto":
	default:
		return fmt.Errorf("agent.permission_mode %q is not one of ask, auto", c.Agent.PermissionMode)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	for _, namespace := range c.Agent.ExtensionEnabled {
		section, ok := c.Extensions[namespace]
		if !ok {
			return fmt.Errorf("agent.extension_enabled names %q but [extensions.%s] is missing", namespace, namespace)
		}
		if section.Location == "" {
			return fmt.Errorf("extensions.%s.location is required", namespace)
		}
	}

	return nil
}

// Entries converts the [extensions.*] sections into loader entries, sorted
// by namespace for deterministic load order. An entry is enabled only when
// its namespace appears in agent.extension_enabled.
func (c *Config) Entries() []extension.Entry {
	namespaces := make([]string, 0, len(c.Extensions))
	for ns := range c.Extensions {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	entries := make([]extension.Entry, 0, len(namespaces))
	for _, ns := range namespaces {
		section := c.Extensions[ns]
		options := section.Options
		if options == nil {
			options = make(map[string]any)
		}
		entries = append(entries, extension.Entry{
			Namespace: ns,
			Location:  section.Location,
			Enabled:   slices.Contains(c.Agent.ExtensionEnabled, ns),
			Options:   options,
		})
	}
	return entries
}

// ModelEnv flattens the opaque [model] section into string pairs for the
// session boundary's process environment.
func (c *Config) ModelEnv() map[string]string {
	env := make(map[string]string, len(c.Model))
	for key, value := range c.Model {
		env[key] = fmt.Sprint(value)
	}
	return env
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.InitTimeoutRaw != "" {
		cfg.Agent.InitTimeout, err = time.ParseDuration(cfg.Agent.InitTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing init_timeout %q: %w", cfg.Agent.InitTimeoutRaw, err)
		}
	}

	if cfg.Agent.CallTimeoutRaw != "" {
		cfg.Agent.CallTimeout, err = time.ParseDuration(cfg.Agent.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Agent.CallTimeoutRaw, err)
		}
	}

	return nil
}
