package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filemarker/internal/collect"
	"filemarker/internal/config"
	"filemarker/internal/inspect"
	"filemarker/internal/logging"
	"filemarker/internal/shell"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTests = `package sample

import "testing"

func TestUnmarked(t *testing.T) {}

//filemarker:mark first
func TestFirst(t *testing.T) {}

//filemarker:mark second
func TestSecond(t *testing.T) {}

//filemarker:mark third
func TestThird(t *testing.T) {}
`

func sampleItems(t *testing.T) []collect.Item {
	t.Helper()
	items, err := collect.ParseFile("sample_test.go", []byte(sampleTests))
	require.NoError(t, err)
	require.Len(t, items, 4)
	return items
}

func names(items []collect.Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func writeMarker(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// gitStub answers rev-parse and diff with fixed output.
type gitStub struct {
	top   string
	diff  string
	calls int
}

func (g *gitStub) Execute(_ context.Context, cmd shell.Command) (*shell.Result, error) {
	g.calls++
	args := strings.Join(cmd.Arguments, " ")
	switch {
	case strings.HasPrefix(args, "rev-parse"):
		return &shell.Result{Stdout: g.top + "\n"}, nil
	case strings.Contains(args, "diff --name-only"):
		return &shell.Result{Stdout: g.diff}, nil
	}
	return &shell.Result{ExitCode: 1}, nil
}

// failingRunner fails the test if git is consulted.
type failingRunner struct{ t *testing.T }

func (f failingRunner) Execute(context.Context, shell.Command) (*shell.Result, error) {
	f.t.Fatal("git must not run when files are given")
	return nil, nil
}

func TestSingleFile(t *testing.T) {
	dir := t.TempDir()
	marker := writeMarker(t, dir, "mark.py", "TEST_MARKS = ['first', 'third']\n")

	p, err := Configure(context.Background(), Options{Files: []string{marker}}, Deps{Runner: failingRunner{t}})
	require.NoError(t, err)
	require.NotNil(t, p)

	selected, deselected := p.ModifyItems(sampleItems(t))
	assert.Equal(t, []string{"TestFirst", "TestThird"}, names(selected))
	assert.Equal(t, []string{"TestUnmarked", "TestSecond"}, names(deselected))
	assert.Equal(t, []string{"first", "third"}, p.Marks())
	assert.NotEmpty(t, p.RunID())
}

func TestFileAndExistingExpression(t *testing.T) {
	dir := t.TempDir()
	marker := writeMarker(t, dir, "mark.py", "TEST_MARKS = ['first', 'third']\n")

	p, err := Configure(context.Background(), Options{Files: []string{marker}, Expression: "second"}, Deps{})
	require.NoError(t, err)

	selected, _ := p.ModifyItems(sampleItems(t))
	assert.Equal(t, []string{"TestFirst", "TestSecond", "TestThird"}, names(selected))
	assert.Equal(t, "(second) or first or third", p.Selection().Expression)
}

func TestMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeMarker(t, dir, "first.py", "TEST_MARKS = ['first']\n")
	second := writeMarker(t, dir, "second.go", "package m\n\nvar TEST_MARKS = []string{\"second\"}\n")

	p, err := Configure(context.Background(), Options{Files: []string{first, second}}, Deps{Workers: 2})
	require.NoError(t, err)

	selected, _ := p.ModifyItems(sampleItems(t))
	assert.Equal(t, []string{"TestFirst", "TestSecond"}, names(selected))
	assert.Len(t, p.Sources(), 2)
}

func TestRelativeFilesResolveAgainstWorkDir(t *testing.T) {
	dir := t.TempDir()
	writeMarker(t, dir, "mark.py", "TEST_MARKS = ['first']\n")

	p, err := Configure(context.Background(), Options{Files: []string{"mark.py"}}, Deps{WorkDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "mark.py")}, p.Files())
	assert.Equal(t, []string{"first"}, p.Marks())
}

func TestCustomVariable(t *testing.T) {
	dir := t.TempDir()
	custom := writeMarker(t, dir, "custom.py", "CUSTOM = ['first', 'third']\n")

	p, err := Configure(context.Background(), Options{Files: []string{custom}, Variable: "CUSTOM"}, Deps{})
	require.NoError(t, err)

	selected, _ := p.ModifyItems(sampleItems(t))
	assert.Equal(t, []string{"TestFirst", "TestThird"}, names(selected))
	assert.Equal(t, "CUSTOM", p.Variable())
}

func TestNoMarksDeselectsEverything(t *testing.T) {
	dir := t.TempDir()
	marker := writeMarker(t, dir, "mark.py", "")

	var hooked []collect.Item
	p, err := Configure(context.Background(), Options{Files: []string{marker}, Expression: "second"}, Deps{
		Deselected: func(items []collect.Item) { hooked = items },
	})
	require.NoError(t, err)
	assert.True(t, p.Selection().DeselectAll)

	selected, deselected := p.ModifyItems(sampleItems(t))
	assert.Empty(t, selected)
	assert.Len(t, deselected, 4)
	assert.Len(t, hooked, 4)
	assert.True(t, p.Report().DeselectAll)
}

func TestBadVariable(t *testing.T) {
	dir := t.TempDir()
	marker := writeMarker(t, dir, "mark.py", "TEST_MARKS = 'bad'\n")

	_, err := Configure(context.Background(), Options{Files: []string{marker}}, Deps{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, inspect.ErrNotSequence))
	assert.Contains(t, err.Error(), "must be a list or tuple")
}

func TestIncludeMarksOnly(t *testing.T) {
	p, err := Configure(context.Background(), Options{Marks: []string{"second"}}, Deps{
		Runner: &gitStub{top: t.TempDir()},
	})
	require.NoError(t, err)
	selected, _ := p.ModifyItems(sampleItems(t))
	assert.Equal(t, []string{"TestSecond"}, names(selected))
}

func TestActiveWithoutFilesUsesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeMarker(t, dir, "mark.py", "TEST_MARKS = ['first']\n")
	writeMarker(t, dir, "README.md", "TEST_MARKS = ['ignored']\n")

	git := &gitStub{top: dir, diff: "mark.py\nREADME.md\n"}
	p, err := Configure(context.Background(), Options{Active: true}, Deps{WorkDir: dir, Runner: git})
	require.NoError(t, err)

	selected, _ := p.ModifyItems(sampleItems(t))
	assert.Equal(t, []string{"TestFirst"}, names(selected))
	assert.Equal(t, []string{filepath.Join(dir, "mark.py")}, p.Files())
	assert.Equal(t, 2, git.calls)
}

func TestActiveNoChangedFilesDeselectsAll(t *testing.T) {
	dir := t.TempDir()
	writeMarker(t, dir, "mark.py", "TEST_MARKS = ['first']\n")

	git := &gitStub{top: dir, diff: ""}
	p, err := Configure(context.Background(), Options{Active: true, Expression: "second"}, Deps{WorkDir: dir, Runner: git})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Empty(t, p.Files())
	assert.True(t, p.Selection().DeselectAll)

	selected, deselected := p.ModifyItems(sampleItems(t))
	assert.Empty(t, selected)
	assert.Len(t, deselected, 4)
}

func TestConfigureFailureIsAudited(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, logging.Initialize(dir, logging.Config{DebugMode: true}))
	t.Cleanup(func() {
		logging.CloseAll()
		_ = logging.Initialize(dir, logging.Config{})
	})
	marker := writeMarker(t, dir, "mark.py", "TEST_MARKS = 'bad'\n")

	_, err := Configure(context.Background(), Options{Files: []string{marker}}, Deps{})
	require.Error(t, err)
	logging.CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, ".filemarker", "logs", date+"_audit.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var event logging.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, logging.AuditErrorEvent, event.EventType)
	assert.Equal(t, "TEST_MARKS", event.Target)
	assert.Contains(t, event.Error, "must be a list or tuple")
	assert.NotEmpty(t, event.RunID)
}

func TestActiveGitFailure(t *testing.T) {
	_, err := Configure(context.Background(), Options{Active: true}, Deps{
		WorkDir: t.TempDir(),
		Runner:  &gitStub{top: ""},
	})
	assert.Error(t, err)
}

func TestNotActiveByDefault(t *testing.T) {
	p, err := Configure(context.Background(), Options{}, Deps{Runner: failingRunner{t}})
	require.NoError(t, err)
	assert.Nil(t, p)

	opts := OptionsFromConfig(config.DefaultConfig())
	assert.False(t, opts.IsActive())
	assert.Equal(t, config.DefaultVariable, opts.Variable)
}
