package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace-relative name of the config file.
const FileName = ".filemarker.yaml"

// DefaultVariable is the designated variable read out of source files.
const DefaultVariable = "TEST_MARKS"

// Config holds all filemarker configuration.
type Config struct {
	// Test selection
	Selection SelectionConfig `yaml:"selection"`

	// Changed-file discovery
	VCS VCSConfig `yaml:"vcs"`

	// Source inspection
	Inspect InspectConfig `yaml:"inspect"`

	// go test invocation
	Runner RunnerConfig `yaml:"runner"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SelectionConfig configures how marks are gathered and composed.
type SelectionConfig struct {
	// Active enables mark-based selection even when no files or marks are
	// given explicitly. When inactive every test runs.
	Active bool `yaml:"active"`

	// Variable is the top-level list variable holding mark names.
	Variable string `yaml:"variable"`

	// IncludeMarks are always added to the collected marks (names, not expressions).
	IncludeMarks []string `yaml:"include_marks"`

	// Expression is an existing mark expression the collected marks are merged into.
	Expression string `yaml:"expression"`
}

// VCSConfig configures changed-file discovery.
type VCSConfig struct {
	Base         string `yaml:"base"`          // git diff base
	FallbackBase string `yaml:"fallback_base"` // retried once when Base fails
	Timeout      string `yaml:"timeout"`
}

// RunnerConfig configures go test invocation.
type RunnerConfig struct {
	GoBinary       string   `yaml:"go_binary"`
	Packages       []string `yaml:"packages"`
	ExtraArgs      []string `yaml:"extra_args"`
	Timeout        string   `yaml:"timeout"`
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Selection: SelectionConfig{
			Variable: DefaultVariable,
		},
		VCS: VCSConfig{
			Base:         "@{1}",
			FallbackBase: "HEAD~1",
			Timeout:      "30s",
		},
		Inspect: DefaultInspectConfig(),
		Runner: RunnerConfig{
			GoBinary:       "go",
			Packages:       []string{"./..."},
			Timeout:        "10m",
			MaxOutputBytes: 4 * 1024 * 1024,
		},
		Watch: DefaultWatchConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the config path inside a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, FileName)
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honour the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FILEMARKER_ACTIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Selection.Active = b
		}
	}
	if v := os.Getenv("FILEMARKER_VARIABLE"); v != "" {
		c.Selection.Variable = v
	}
	if v := os.Getenv("FILEMARKER_MARKS"); v != "" {
		c.Selection.IncludeMarks = splitList(v)
	}
	if v := os.Getenv("FILEMARKER_EXPRESSION"); v != "" {
		c.Selection.Expression = v
	}
	if v := os.Getenv("FILEMARKER_BASE"); v != "" {
		c.VCS.Base = v
	}
	if v := os.Getenv("FILEMARKER_GO"); v != "" {
		c.Runner.GoBinary = v
	}
}

// splitList splits a comma or whitespace separated list.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// GetVCSTimeout returns the git timeout as a duration.
func (c *Config) GetVCSTimeout() time.Duration {
	d, err := time.ParseDuration(c.VCS.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRunnerTimeout returns the go test timeout as a duration.
func (c *Config) GetRunnerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Runner.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Selection.Variable) == "" {
		return fmt.Errorf("selection.variable must not be empty")
	}
	if c.VCS.Base == "" {
		return fmt.Errorf("vcs.base must not be empty")
	}
	if c.Runner.GoBinary == "" {
		return fmt.Errorf("runner.go_binary must not be empty")
	}
	if c.Inspect.Workers < 1 {
		return fmt.Errorf("inspect.workers must be >= 1")
	}
	for _, d := range []struct{ name, value string }{
		{"vcs.timeout", c.VCS.Timeout},
		{"runner.timeout", c.Runner.Timeout},
		{"watch.debounce", c.Watch.Debounce},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}
