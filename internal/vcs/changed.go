// Package vcs discovers the files changed in the working repository.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filemarker/internal/logging"
	"filemarker/internal/shell"
)

// ErrNoGit is returned when dir is not inside a git work tree or git is missing.
var ErrNoGit = errors.New("not a git repository")

// Options configures ChangedFiles.
type Options struct {
	// Base is the revision diffed against. Defaults to "@{1}", the previous
	// position of the current branch.
	Base string
	// FallbackBase is tried once when diffing against Base fails. Empty
	// disables the retry.
	FallbackBase string
	// Binary is the git executable. Defaults to "git".
	Binary  string
	Timeout time.Duration
	// Filter reports whether a path is worth returning, typically whether an
	// inspector is registered for its extension. Nil accepts every file.
	Filter func(path string) bool
	// MaxFileBytes skips larger files. Zero disables the limit.
	MaxFileBytes int64
	Runner       shell.Runner
}

// DefaultOptions returns options diffing against @{1} with HEAD~1 as fallback.
func DefaultOptions() Options {
	return Options{
		Base:         "@{1}",
		FallbackBase: "HEAD~1",
		Binary:       "git",
		Timeout:      30 * time.Second,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.Base == "" {
		o.Base = d.Base
	}
	if o.Binary == "" {
		o.Binary = d.Binary
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.Runner == nil {
		o.Runner = shell.NewExecutor()
	}
}

// ChangedFiles lists the files that differ from the base revision. Paths are
// absolute, resolved against the repository top level, and limited to regular
// files that exist on disk and pass the filter. Order follows git's output.
func ChangedFiles(ctx context.Context, dir string, opts Options) ([]string, error) {
	opts.normalize()
	timer := logging.StartTimer(logging.CategoryVCS, "Changed-file discovery")
	defer timer.Stop()

	top, err := TopLevel(ctx, dir, opts)
	if err != nil {
		return nil, err
	}

	out, err := diffNames(ctx, top, opts.Base, opts)
	if err != nil {
		if opts.FallbackBase == "" || opts.FallbackBase == opts.Base {
			return nil, err
		}
		logging.VCSWarn("Diff against %s failed, retrying with %s: %v", opts.Base, opts.FallbackBase, err)
		var fallbackErr error
		out, fallbackErr = diffNames(ctx, top, opts.FallbackBase, opts)
		if fallbackErr != nil {
			return nil, errors.Join(err, fallbackErr)
		}
	}

	files := filterChanged(top, splitLines(out), opts)
	logging.VCS("Found %d candidate files in %s", len(files), top)
	return files, nil
}

// TopLevel returns the root of the work tree containing dir.
func TopLevel(ctx context.Context, dir string, opts Options) (string, error) {
	opts.normalize()
	res, err := opts.Runner.Execute(ctx, shell.Command{
		Binary:           opts.Binary,
		Arguments:        []string{"rev-parse", "--show-toplevel"},
		WorkingDirectory: dir,
		Timeout:          opts.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	if !res.Succeeded() {
		return "", fmt.Errorf("%w: %s", ErrNoGit, strings.TrimSpace(res.Stderr))
	}
	top := strings.TrimSpace(res.Stdout)
	if top == "" {
		return "", fmt.Errorf("%w: empty top level for %s", ErrNoGit, dir)
	}
	return filepath.FromSlash(top), nil
}

func diffNames(ctx context.Context, top, base string, opts Options) (string, error) {
	logging.VCSDebug("git diff --name-only %s (in %s)", base, top)
	res, err := opts.Runner.Execute(ctx, shell.Command{
		Binary:           opts.Binary,
		Arguments:        []string{"-c", "core.quotePath=false", "diff", "--name-only", base},
		WorkingDirectory: top,
		Timeout:          opts.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("git diff %s: %w", base, err)
	}
	if !res.Succeeded() {
		msg := strings.TrimSpace(res.Stderr)
		if res.Killed {
			msg = res.KillReason
		}
		return "", fmt.Errorf("git diff %s exited %d: %s", base, res.ExitCode, msg)
	}
	return res.Stdout, nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func filterChanged(top string, names []string, opts Options) []string {
	seen := make(map[string]bool, len(names))
	files := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(top, filepath.FromSlash(name))
		if seen[path] {
			continue
		}
		seen[path] = true

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// deleted or renamed away
			logging.VCSDebug("Skipping %s: not a regular file", name)
			continue
		}
		if opts.MaxFileBytes > 0 && info.Size() > opts.MaxFileBytes {
			logging.VCSWarn("Skipping %s: %d bytes exceeds limit", name, info.Size())
			continue
		}
		if opts.Filter != nil && !opts.Filter(path) {
			continue
		}
		files = append(files, path)
	}
	return files
}
