package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"filemarker/internal/collect"
	"filemarker/internal/config"
	"filemarker/internal/inspect"
	"filemarker/internal/logging"
	"filemarker/internal/plugin"
	"filemarker/internal/shell"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Selection flags, shared by every subcommand
	selActive       bool
	selIncludeMarks []string
	selFiles        []string
	selVariable     string
	selExpression   string
	selBase         string
	selFallbackBase string
	selPackages     []string
)

func registerSelectionFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&selActive, "active", false, "Activate selection even without --files or --include-marks")
	flags.StringSliceVar(&selIncludeMarks, "include-marks", nil, "Marks to include (names, not expressions)")
	flags.StringSliceVar(&selFiles, "files", nil, "Files to search (default: changed files from git)")
	flags.StringVar(&selVariable, "variable", "", "Designated variable name (default: TEST_MARKS)")
	flags.StringVarP(&selExpression, "marks-expr", "m", "", "Existing mark expression to merge into")
	flags.StringVar(&selBase, "base", "", "git diff base (default: @{1})")
	flags.StringVar(&selFallbackBase, "fallback-base", "", "git diff base retried when --base fails (default: HEAD~1)")
	flags.StringSliceVar(&selPackages, "packages", nil, "Package patterns to collect tests from (default: ./...)")
}

// session bundles the resolved config and workspace for one command.
type session struct {
	workspace string
	cfg       *config.Config
	registry  *inspect.Registry
	executor  *shell.Executor
}

// newSession loads config, applies flag overrides and initializes logging.
func newSession(cmd *cobra.Command) (*session, error) {
	ws, err := workspaceDir()
	if err != nil {
		return nil, err
	}
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &exitError{code: ExitUsage, err: err}
	}
	applySelectionFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: ExitUsage, err: err}
	}

	if err := logging.Initialize(ws, logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSON(),
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, err
	}
	logging.Boot("Command %q in %s (config %s)", cmd.CommandPath(), ws, path)

	executor := shell.NewExecutorWithConfig(shell.Config{
		DefaultTimeout: cfg.GetRunnerTimeout(),
		MaxOutputBytes: cfg.Runner.MaxOutputBytes,
	})
	executor.SetAuditCallback(func(ev shell.AuditEvent) {
		if ev.Type != shell.AuditEventStart {
			exit, duration := -1, time.Duration(0)
			if ev.Result != nil {
				exit, duration = ev.Result.ExitCode, ev.Result.Duration
			}
			logging.Audit("", logging.CategoryShell).Command(ev.Command.String(), exit, duration, ev.Err)
		}
		if logger == nil {
			return
		}
		fields := []zap.Field{zap.String("event", string(ev.Type)), zap.String("command", ev.Command.String())}
		if ev.Result != nil && ev.Type != shell.AuditEventStart {
			fields = append(fields, zap.Int("exit", ev.Result.ExitCode), zap.Duration("duration", ev.Result.Duration))
		}
		logger.Debug("exec", fields...)
	})

	return &session{
		workspace: ws,
		cfg:       cfg,
		registry:  inspect.DefaultRegistry(),
		executor:  executor,
	}, nil
}

// applySelectionFlags overrides config values with explicitly set flags.
func applySelectionFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("active") {
		cfg.Selection.Active = selActive
	}
	if flags.Changed("include-marks") {
		cfg.Selection.IncludeMarks = splitNames(selIncludeMarks)
	}
	if flags.Changed("variable") {
		cfg.Selection.Variable = selVariable
	}
	if flags.Changed("marks-expr") {
		cfg.Selection.Expression = selExpression
	}
	if flags.Changed("base") {
		cfg.VCS.Base = selBase
	}
	if flags.Changed("fallback-base") {
		cfg.VCS.FallbackBase = selFallbackBase
	}
	if flags.Changed("packages") {
		cfg.Runner.Packages = selPackages
	}
}

// splitNames also splits space separated values, so --files="a.py b.py" works.
func splitNames(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Fields(v)...)
	}
	return out
}

func (s *session) options() plugin.Options {
	opts := plugin.OptionsFromConfig(s.cfg)
	opts.Files = splitNames(selFiles)
	return opts
}

// configure resolves the plugin; nil means selection is inactive.
func (s *session) configure(ctx context.Context, opts plugin.Options) (*plugin.Plugin, error) {
	p, err := plugin.Configure(ctx, opts, plugin.Deps{
		WorkDir:      s.workspace,
		Registry:     s.registry,
		Workers:      s.cfg.Inspect.Workers,
		MaxFileBytes: s.cfg.Inspect.MaxFileBytes,
		Runner:       s.executor,
		VCSTimeout:   s.cfg.GetVCSTimeout(),
		Deselected: func(items []collect.Item) {
			if logger != nil {
				logger.Debug("deselected", zap.Int("count", len(items)))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}
	return p, nil
}

// collectItems collects the tests of the configured packages.
func (s *session) collectItems(ctx context.Context) ([]collect.Item, error) {
	return collect.NewCollector(s.workspace, s.cfg.Inspect.Workers).Collect(ctx, s.cfg.Runner.Packages)
}

// selectItems applies p to items. A nil plugin selects everything.
func selectItems(p *plugin.Plugin, items []collect.Item) (selected, deselected []collect.Item) {
	if p == nil {
		return items, nil
	}
	return p.ModifyItems(items)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
