package main

import (
	"context"
	"fmt"
	"os"

	"filemarker/cmd/filemarker/ui"
	"filemarker/internal/runner"
	"filemarker/internal/watch"

	"github.com/spf13/cobra"
)

var watchRun bool

// watchCmd re-selects whenever inspectable files change
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-select (and optionally run) tests when marked files change",
	Long: `Watches the workspace. Each settled batch of changed files is
inspected as if passed with --files, and the resulting selection is printed.
With --run the selected tests are run as well.`,
	Args: noArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRun, "run", false, "Run the selected tests after each change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()

	onChange := func(ctx context.Context, files []string) {
		opts := s.options()
		opts.Files = files
		p, err := s.configure(ctx, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, styles.Error.Render(err.Error()))
			return
		}
		fmt.Println(styles.Title.Render("Selection:"), describeSelection(p))
		if !watchRun {
			return
		}
		plan, _, err := buildPlan(ctx, s, p)
		if err != nil {
			fmt.Fprintln(os.Stderr, styles.Error.Render(err.Error()))
			return
		}
		if plan.Empty() {
			fmt.Println(styles.Warning.Render("no tests selected"))
			return
		}
		summary, err := runner.Run(ctx, plan, runner.Options{
			RunID:     p.RunID(),
			GoBinary:  s.cfg.Runner.GoBinary,
			WorkDir:   s.workspace,
			ExtraArgs: s.cfg.Runner.ExtraArgs,
			Timeout:   s.cfg.GetRunnerTimeout(),
			Runner:    s.executor,
			Output:    os.Stdout,
		})
		switch {
		case err != nil:
			fmt.Fprintln(os.Stderr, styles.Error.Render(err.Error()))
		case summary.OK():
			fmt.Println(styles.Selected.Render("ok"))
		default:
			fmt.Println(styles.Error.Render(fmt.Sprintf("FAIL: %v", summary.Failed())))
		}
	}

	w, err := watch.New(s.workspace, watch.Options{
		Debounce: s.cfg.Watch.GetDebounce(),
		Ignore:   s.cfg.Watch.IgnorePatterns,
		Filter:   s.registry.Supports,
		OnChange: onChange,
	})
	if err != nil {
		return err
	}
	if err := w.Start(cmd.Context()); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Println(styles.Muted.Render(fmt.Sprintf("watching %s (ctrl-c to stop)", s.workspace)))
	<-cmd.Context().Done()
	stats := w.Stats()
	fmt.Printf("\n%d events, %d batches\n", stats.Events, stats.Batches)
	return nil
}
