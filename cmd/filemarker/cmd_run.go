package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"filemarker/cmd/filemarker/ui"
	"filemarker/internal/plugin"
	"filemarker/internal/runner"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd runs go test for the selection
var runCmd = &cobra.Command{
	Use:   "run [-- go test flags]",
	Short: "Run the selected tests with go test",
	Long: `Collects the tests of --packages, applies the selection and runs the
selected tests, one go test invocation per package:

  go test -run '^(TestA|TestB)$' ./pkg

Arguments after -- are passed to go test. When selection is inactive every
test runs. When it is active and nothing matches, no test runs and the exit
code is 5.

Example:
  filemarker run --files internal/db/schema.py -- -count=1 -v`,
	RunE: runTests,
}

func runTests(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	p, err := s.configure(ctx, s.options())
	if err != nil {
		return err
	}
	plan, deselected, err := buildPlan(ctx, s, p)
	if err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	if plan.Empty() {
		fmt.Println(styles.Warning.Render(fmt.Sprintf("no tests selected, %d deselected", deselected)))
		return &exitError{code: ExitNoTests, err: errors.New("no tests selected")}
	}

	extra := append(append([]string(nil), s.cfg.Runner.ExtraArgs...), args...)
	opts := runner.Options{
		GoBinary:  s.cfg.Runner.GoBinary,
		WorkDir:   s.workspace,
		ExtraArgs: extra,
		Timeout:   s.cfg.GetRunnerTimeout(),
		Runner:    s.executor,
		Output:    os.Stdout,
	}
	if p != nil {
		opts.RunID = p.RunID()
		fmt.Println(styles.Title.Render("Selection:"), describeSelection(p))
	}
	if deselected > 0 {
		fmt.Println(styles.Muted.Render(fmt.Sprintf("%d tests deselected", deselected)))
	}

	summary, err := runner.Run(ctx, plan, opts)
	if err != nil {
		return err
	}
	logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("invocations", len(summary.Results)),
		zap.Strings("failed", summary.Failed()),
		zap.Duration("duration", summary.Duration))

	if !summary.OK() {
		fmt.Println(styles.Error.Render("FAIL: " + strings.Join(summary.Failed(), " ")))
		return &exitError{code: ExitTestsFailed, err: fmt.Errorf("%d packages failed", len(summary.Failed()))}
	}
	fmt.Println(styles.Selected.Render("ok"))
	return nil
}

// buildPlan collects tests and applies the selection. An inactive selection
// runs the configured packages whole.
func buildPlan(ctx context.Context, s *session, p *plugin.Plugin) (runner.Plan, int, error) {
	if p == nil {
		return runner.PlanAll(s.cfg.Runner.Packages), 0, nil
	}
	items, err := s.collectItems(ctx)
	if err != nil {
		return runner.Plan{}, 0, err
	}
	selected, deselected := p.ModifyItems(items)
	return runner.NewPlan(selected), len(deselected), nil
}

func describeSelection(p *plugin.Plugin) string {
	sel := p.Selection()
	if sel.DeselectAll {
		return "deselect all"
	}
	return sel.Expression
}
