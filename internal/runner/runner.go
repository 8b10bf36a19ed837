// Package runner turns a test selection into go test invocations and runs them.
package runner

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"filemarker/internal/collect"
	"filemarker/internal/logging"
	"filemarker/internal/shell"

	"github.com/google/uuid"
)

// Invocation is one go test run over a single package pattern.
type Invocation struct {
	Package string   `json:"package"`
	Tests   []string `json:"tests,omitempty"`
}

// Pattern returns the -run regular expression, or "" to run every test.
func (inv Invocation) Pattern() string {
	return RunPattern(inv.Tests)
}

// Args builds the go test argument list.
func (inv Invocation) Args(extra []string) []string {
	args := append([]string{"test"}, extra...)
	if p := inv.Pattern(); p != "" {
		args = append(args, "-run", p)
	}
	return append(args, inv.Package)
}

// Plan is an ordered list of invocations.
type Plan struct {
	Invocations []Invocation `json:"invocations"`
}

// Empty reports whether the plan runs nothing.
func (p Plan) Empty() bool { return len(p.Invocations) == 0 }

// Tests counts the tests named by the plan.
func (p Plan) Tests() int {
	n := 0
	for _, inv := range p.Invocations {
		n += len(inv.Tests)
	}
	return n
}

// NewPlan groups selected items per package, sorted by package. An empty
// selection yields an empty plan.
func NewPlan(items []collect.Item) Plan {
	byPkg := make(map[string][]string)
	seen := make(map[string]bool)
	for _, it := range items {
		key := it.Package + "\x00" + it.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		byPkg[it.Package] = append(byPkg[it.Package], it.Name)
	}

	pkgs := make([]string, 0, len(byPkg))
	for pkg := range byPkg {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	plan := Plan{}
	for _, pkg := range pkgs {
		tests := byPkg[pkg]
		sort.Strings(tests)
		plan.Invocations = append(plan.Invocations, Invocation{Package: pkg, Tests: tests})
	}
	return plan
}

// PlanAll runs every test of the given package patterns.
func PlanAll(packages []string) Plan {
	plan := Plan{}
	for _, pkg := range packages {
		plan.Invocations = append(plan.Invocations, Invocation{Package: pkg})
	}
	return plan
}

// RunPattern anchors test names into a -run expression. Each top-level test
// is matched exactly; subtests of a selected test still run.
func RunPattern(names []string) string {
	if len(names) == 0 {
		return ""
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}

// Options configures Run.
type Options struct {
	RunID     string
	GoBinary  string
	WorkDir   string
	ExtraArgs []string
	Timeout   time.Duration
	Runner    shell.Runner
	// Output receives go test output as it is produced.
	Output io.Writer
}

// Result is the outcome of one invocation.
type Result struct {
	Invocation Invocation    `json:"invocation"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration"`
	Killed     bool          `json:"killed,omitempty"`
}

// Passed reports whether the invocation succeeded.
func (r Result) Passed() bool { return r.ExitCode == 0 && !r.Killed }

// Summary aggregates a run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Results  []Result      `json:"results"`
	Duration time.Duration `json:"duration"`
}

// Failed returns the packages whose invocation failed.
func (s *Summary) Failed() []string {
	var out []string
	for _, r := range s.Results {
		if !r.Passed() {
			out = append(out, r.Invocation.Package)
		}
	}
	return out
}

// OK reports whether every invocation passed.
func (s *Summary) OK() bool { return len(s.Failed()) == 0 }

// Run executes the plan sequentially. Test failures are reported in the
// Summary; the error is reserved for invocations that could not start or a
// canceled context.
func Run(ctx context.Context, plan Plan, opts Options) (*Summary, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.GoBinary == "" {
		opts.GoBinary = "go"
	}
	if opts.Runner == nil {
		opts.Runner = shell.NewExecutor()
	}

	start := time.Now()
	summary := &Summary{RunID: opts.RunID}
	logging.Runner("[%s] Running %d invocations (%d named tests)", opts.RunID, len(plan.Invocations), plan.Tests())

	for _, inv := range plan.Invocations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		cmd := shell.Command{
			Binary:           opts.GoBinary,
			Arguments:        inv.Args(opts.ExtraArgs),
			WorkingDirectory: opts.WorkDir,
			Timeout:          opts.Timeout,
			Stream:           opts.Output,
		}
		logging.RunnerDebug("[%s] %s", opts.RunID, cmd)

		res, err := opts.Runner.Execute(ctx, cmd)
		if err != nil {
			return summary, fmt.Errorf("running %s: %w", inv.Package, err)
		}
		r := Result{Invocation: inv, ExitCode: res.ExitCode, Duration: res.Duration, Killed: res.Killed}
		if !r.Passed() {
			logging.RunnerWarn("[%s] %s failed (exit=%d, killed=%v)", opts.RunID, inv.Package, res.ExitCode, res.Killed)
		}
		summary.Results = append(summary.Results, r)
	}

	summary.Duration = time.Since(start)
	logging.Audit(opts.RunID, logging.CategoryRunner).Run(len(summary.Results), summary.Failed(), summary.Duration)
	logging.Runner("[%s] Done in %s: %d failed of %d", opts.RunID, summary.Duration, len(summary.Failed()), len(summary.Results))
	return summary, nil
}
