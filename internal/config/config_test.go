package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FILEMARKER_ACTIVE", "FILEMARKER_VARIABLE", "FILEMARKER_MARKS",
		"FILEMARKER_EXPRESSION", "FILEMARKER_BASE", "FILEMARKER_GO",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Selection.Active)
	assert.Equal(t, "TEST_MARKS", cfg.Selection.Variable)
	assert.Equal(t, "@{1}", cfg.VCS.Base)
	assert.Equal(t, "HEAD~1", cfg.VCS.FallbackBase)
	assert.Equal(t, []string{"./..."}, cfg.Runner.Packages)
	assert.GreaterOrEqual(t, cfg.Inspect.Workers, 2)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", FileName)

	cfg := DefaultConfig()
	cfg.Selection.Variable = "PYTEST_MARKS"
	cfg.Selection.IncludeMarks = []string{"smoke"}
	cfg.VCS.Base = "origin/main"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PYTEST_MARKS", loaded.Selection.Variable)
	assert.Equal(t, []string{"smoke"}, loaded.Selection.IncludeMarks)
	assert.Equal(t, "origin/main", loaded.VCS.Base)
	assert.Equal(t, "HEAD~1", loaded.VCS.FallbackBase)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Selection, cfg.Selection)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("selection:\n  active: true\n  variable: MARKS\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Selection.Active)
	assert.Equal(t, "MARKS", cfg.Selection.Variable)
	assert.Equal(t, "go", cfg.Runner.GoBinary)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("selection: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FILEMARKER_ACTIVE", "true")
	t.Setenv("FILEMARKER_VARIABLE", "MARKS")
	t.Setenv("FILEMARKER_MARKS", "db, slow")
	t.Setenv("FILEMARKER_BASE", "main")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.True(t, cfg.Selection.Active)
	assert.Equal(t, "MARKS", cfg.Selection.Variable)
	assert.Equal(t, []string{"db", "slow"}, cfg.Selection.IncludeMarks)
	assert.Equal(t, "main", cfg.VCS.Base)
}

func TestEnvOverrides_BadBoolIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("FILEMARKER_ACTIVE", "maybe")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.False(t, cfg.Selection.Active)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty variable", func(c *Config) { c.Selection.Variable = " " }},
		{"empty base", func(c *Config) { c.VCS.Base = "" }},
		{"no go binary", func(c *Config) { c.Runner.GoBinary = "" }},
		{"zero workers", func(c *Config) { c.Inspect.Workers = 0 }},
		{"bad timeout", func(c *Config) { c.Runner.Timeout = "soon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.GetVCSTimeout())
	assert.Equal(t, 10*time.Minute, cfg.GetRunnerTimeout())
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.GetDebounce())

	cfg.VCS.Timeout = "nope"
	cfg.Watch.Debounce = "-1s"
	assert.Equal(t, 30*time.Second, cfg.GetVCSTimeout())
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.GetDebounce())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	assert.False(t, lc.IsCategoryEnabled("vcs"))

	lc.DebugMode = true
	assert.True(t, lc.IsCategoryEnabled("vcs"))

	lc.Categories = map[string]bool{"vcs": false}
	assert.False(t, lc.IsCategoryEnabled("vcs"))
	assert.True(t, lc.IsCategoryEnabled("inspect"))
}
