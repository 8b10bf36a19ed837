// Package plugin turns collected marks into a test selection.
//
// Configure resolves the files to inspect, unions the marks they declare and
// composes the selection. ModifyItems then splits collected tests into the
// selected and deselected sets.
package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"filemarker/internal/collect"
	"filemarker/internal/config"
	"filemarker/internal/inspect"
	"filemarker/internal/logging"
	"filemarker/internal/markexpr"
	"filemarker/internal/marks"
	"filemarker/internal/shell"
	"filemarker/internal/vcs"

	"github.com/google/uuid"
)

// Options are the user-facing selection settings.
type Options struct {
	// Active turns selection on without explicit files or marks.
	Active bool
	// Marks are included whatever the files declare. Names, not expressions.
	Marks []string
	// Files to inspect. Empty means the files git reports as changed.
	Files []string
	// Variable is the designated top-level variable. Defaults to TEST_MARKS.
	Variable string
	// Expression is an existing mark expression to merge into.
	Expression string

	Base         string
	FallbackBase string
}

// IsActive reports whether selection applies. Naming files or marks
// explicitly implies activation.
func (o Options) IsActive() bool {
	return o.Active || len(o.Files) > 0 || len(o.Marks) > 0
}

// OptionsFromConfig seeds Options from the selection and vcs sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Active:       cfg.Selection.Active,
		Marks:        append([]string(nil), cfg.Selection.IncludeMarks...),
		Variable:     cfg.Selection.Variable,
		Expression:   cfg.Selection.Expression,
		Base:         cfg.VCS.Base,
		FallbackBase: cfg.VCS.FallbackBase,
	}
}

// Deps are the collaborators Configure needs.
type Deps struct {
	// WorkDir anchors relative file paths and changed-file discovery.
	WorkDir  string
	Registry *inspect.Registry
	Workers  int
	// MaxFileBytes bounds changed files picked up from git.
	MaxFileBytes int64

	// Runner executes git. Nil uses a real shell executor.
	Runner     shell.Runner
	GitBinary  string
	VCSTimeout time.Duration

	// Deselected, when set, receives the tests ModifyItems drops.
	Deselected func(items []collect.Item)
}

// Plugin holds a resolved selection.
type Plugin struct {
	runID     string
	variable  string
	files     []string
	sources   []marks.Source
	marks     marks.Set
	selection markexpr.Selection

	deselected func(items []collect.Item)
}

// Configure resolves the selection. It returns nil, nil when selection is
// not active, in which case every test runs.
func Configure(ctx context.Context, opts Options, deps Deps) (*Plugin, error) {
	if !opts.IsActive() {
		logging.Select("Selection inactive; all tests run")
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategorySelect, "Configure selection")
	defer timer.Stop()

	runID := uuid.NewString()
	audit := logging.Audit(runID, logging.CategorySelect)

	variable := strings.TrimSpace(opts.Variable)
	if variable == "" {
		variable = config.DefaultVariable
	}
	registry := deps.Registry
	if registry == nil {
		registry = inspect.DefaultRegistry()
	}

	files, err := resolveFiles(ctx, opts, deps, registry)
	if err != nil {
		audit.Error("files", err)
		return nil, err
	}

	set := marks.NewSet(opts.Marks...)
	found, sources, err := marks.NewCollector(registry, deps.Workers).Collect(ctx, files, variable)
	if err != nil {
		audit.Error(variable, err)
		return nil, err
	}
	set.Union(found)

	selection, err := markexpr.Compose(opts.Expression, set.Sorted())
	if err != nil {
		audit.Error("expression", err)
		return nil, err
	}

	p := &Plugin{
		runID:      runID,
		variable:   variable,
		files:      files,
		sources:    sources,
		marks:      set,
		selection:  selection,
		deselected: deps.Deselected,
	}
	audit.Selection(selection.Expression, p.Marks(), len(files), selection.DeselectAll)
	if selection.DeselectAll {
		logging.Select("[%s] No marks found in %d files; deselecting all tests", p.runID, len(files))
	} else {
		logging.Select("[%s] Selection: %s", p.runID, selection.Expression)
	}
	return p, nil
}

func resolveFiles(ctx context.Context, opts Options, deps Deps, registry *inspect.Registry) ([]string, error) {
	if len(opts.Files) > 0 {
		files := make([]string, 0, len(opts.Files))
		for _, f := range opts.Files {
			if !filepath.IsAbs(f) && deps.WorkDir != "" {
				f = filepath.Join(deps.WorkDir, f)
			}
			files = append(files, f)
		}
		return files, nil
	}

	dir := deps.WorkDir
	if dir == "" {
		dir = "."
	}
	files, err := vcs.ChangedFiles(ctx, dir, vcs.Options{
		Base:         opts.Base,
		FallbackBase: opts.FallbackBase,
		Binary:       deps.GitBinary,
		Timeout:      deps.VCSTimeout,
		Filter:       registry.Supports,
		MaxFileBytes: deps.MaxFileBytes,
		Runner:       deps.Runner,
	})
	if err != nil {
		return nil, fmt.Errorf("changed files: %w", err)
	}
	return files, nil
}

// ModifyItems splits items into selected and deselected tests, preserving
// order. The deselected tests are also passed to the Deselected hook.
func (p *Plugin) ModifyItems(items []collect.Item) (selected, deselected []collect.Item) {
	for _, it := range items {
		if p.selection.Matches(it.Marks) {
			selected = append(selected, it)
		} else {
			deselected = append(deselected, it)
		}
	}
	logging.SelectDebug("[%s] %d selected, %d deselected", p.runID, len(selected), len(deselected))
	if len(deselected) > 0 {
		logging.Audit(p.runID, logging.CategorySelect).Deselected(len(deselected))
	}
	if p.deselected != nil && len(deselected) > 0 {
		p.deselected(deselected)
	}
	return selected, deselected
}

// RunID identifies this selection in logs.
func (p *Plugin) RunID() string { return p.runID }

// Variable returns the designated variable name in effect.
func (p *Plugin) Variable() string { return p.variable }

// Files returns the files that were inspected or skipped.
func (p *Plugin) Files() []string { return p.files }

// Marks returns the union of included and collected marks, sorted.
func (p *Plugin) Marks() []string { return p.marks.Sorted() }

// Sources returns the per-file marks.
func (p *Plugin) Sources() []marks.Source { return p.sources }

// Selection returns the composed selection.
func (p *Plugin) Selection() markexpr.Selection { return p.selection }

// Report is a serializable summary of a selection.
type Report struct {
	RunID       string         `json:"run_id"`
	Variable    string         `json:"variable"`
	Files       []string       `json:"files"`
	Sources     []marks.Source `json:"sources"`
	Marks       []string       `json:"marks"`
	Expression  string         `json:"expression"`
	DeselectAll bool           `json:"deselect_all"`
}

// Report summarizes the selection.
func (p *Plugin) Report() Report {
	return Report{
		RunID:       p.runID,
		Variable:    p.variable,
		Files:       p.files,
		Sources:     p.sources,
		Marks:       p.Marks(),
		Expression:  p.selection.Expression,
		DeselectAll: p.selection.DeselectAll,
	}
}
