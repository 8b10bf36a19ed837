package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogging(t *testing.T) {
	t.Helper()
	CloseAll()
	configMu.Lock()
	config = Config{}
	configMu.Unlock()
	t.Cleanup(CloseAll)
}

func readLog(t *testing.T, dir string, category Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, ".filemarker", "logs", date+"_"+string(category)+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestAllCategoriesLog(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Config{DebugMode: true, Level: "debug"}))
	assert.True(t, IsDebugMode())

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	for _, cat := range AllCategories {
		assert.Contains(t, readLog(t, dir, cat), "hello from "+string(cat))
	}
}

func TestProductionModeWritesNothing(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Config{DebugMode: false}))
	Inspect("should not be written")

	_, err := os.Stat(filepath.Join(dir, ".filemarker"))
	assert.True(t, os.IsNotExist(err), "expected no .filemarker dir in production mode")
}

func TestCategoryToggle(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Config{
		DebugMode:  true,
		Categories: map[string]bool{"vcs": false},
	}))

	assert.False(t, IsCategoryEnabled(CategoryVCS))
	assert.True(t, IsCategoryEnabled(CategoryInspect))

	VCS("dropped")
	Inspect("kept")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	_, err := os.Stat(filepath.Join(dir, ".filemarker", "logs", date+"_vcs.log"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, readLog(t, dir, CategoryInspect), "kept")
}

func TestLevelFiltering(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Config{DebugMode: true, Level: "warn"}))
	SelectDebug("debug line")
	Get(CategorySelect).Warn("warn line")
	CloseAll()

	out := readLog(t, dir, CategorySelect)
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "warn line")
}

func TestJSONFormatAndFields(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Config{DebugMode: true, Level: "info", JSONFormat: true}))
	Get(CategoryRunner).With("run_id", "abc").Info("planned %d packages", 2)
	CloseAll()

	line := strings.TrimSpace(readLog(t, dir, CategoryRunner))
	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON line, got %q", line)
	assert.Contains(t, line, `"run_id":"abc"`)
	assert.Contains(t, line, "planned 2 packages")
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetLogging(t)
	assert.Error(t, Initialize("", Config{}))
}

func TestTimerNoopLogger(t *testing.T) {
	resetLogging(t)
	timer := StartTimer(CategoryInspect, "noop")
	assert.GreaterOrEqual(t, int64(timer.StopWithThreshold(time.Hour)), int64(0))
}
