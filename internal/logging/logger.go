// Package logging provides config-driven categorized file logging for filemarker.
// Logs are written to .filemarker/logs/ with one file per category.
// Logging is controlled by logging.debug_mode in .filemarker.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config resolution
	CategoryInspect Category = "inspect" // Source inspection (go/ast, tree-sitter)
	CategoryVCS     Category = "vcs"     // Changed-file discovery
	CategorySelect  Category = "select"  // Mark union and expression composition
	CategoryCollect Category = "collect" // Go test collection
	CategoryRunner  Category = "runner"  // go test invocation
	CategoryWatch   Category = "watch"   // File watching
	CategoryShell   Category = "shell"   // Subprocess execution
)

// AllCategories lists every known category in a stable order.
var AllCategories = []Category{
	CategoryBoot,
	CategoryInspect,
	CategoryVCS,
	CategorySelect,
	CategoryCollect,
	CategoryRunner,
	CategoryWatch,
	CategoryShell,
}

// Config mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Config struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger wraps a zap logger bound to a single category file
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    Config
	configMu  sync.RWMutex
)

// Initialize sets up the logging directory for the workspace.
// Should be called once at startup.
func Initialize(workspace string, cfg Config) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	configMu.Lock()
	config = cfg
	configMu.Unlock()

	if !cfg.DebugMode {
		return nil // Silent no-op in production mode
	}

	dir := filepath.Join(workspace, ".filemarker", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	loggersMu.Lock()
	logsDir = dir
	loggersMu.Unlock()

	if err := InitAudit(); err != nil {
		return err
	}

	boot := Get(CategoryBoot)
	boot.Info("=== filemarker logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", cfg.Level)
	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	dir := logsDir
	loggersMu.RUnlock()

	if dir == "" {
		return &Logger{category: category}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	configMu.RLock()
	cfg := config
	configMu.RUnlock()

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(file), parseLevel(cfg.Level))

	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a logger that attaches the given key-value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	CloseAudit()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	logsDir = ""
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Inspect(format string, args ...interface{})      { Get(CategoryInspect).Info(format, args...) }
func InspectDebug(format string, args ...interface{}) { Get(CategoryInspect).Debug(format, args...) }
func InspectError(format string, args ...interface{}) { Get(CategoryInspect).Error(format, args...) }

func VCS(format string, args ...interface{})      { Get(CategoryVCS).Info(format, args...) }
func VCSDebug(format string, args ...interface{}) { Get(CategoryVCS).Debug(format, args...) }
func VCSWarn(format string, args ...interface{})  { Get(CategoryVCS).Warn(format, args...) }

func Select(format string, args ...interface{})      { Get(CategorySelect).Info(format, args...) }
func SelectDebug(format string, args ...interface{}) { Get(CategorySelect).Debug(format, args...) }

func Collect(format string, args ...interface{})      { Get(CategoryCollect).Info(format, args...) }
func CollectDebug(format string, args ...interface{}) { Get(CategoryCollect).Debug(format, args...) }
func CollectWarn(format string, args ...interface{})  { Get(CategoryCollect).Warn(format, args...) }

func Runner(format string, args ...interface{})      { Get(CategoryRunner).Info(format, args...) }
func RunnerDebug(format string, args ...interface{}) { Get(CategoryRunner).Debug(format, args...) }
func RunnerWarn(format string, args ...interface{})  { Get(CategoryRunner).Warn(format, args...) }

func Watch(format string, args ...interface{})      { Get(CategoryWatch).Info(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }
func WatchError(format string, args ...interface{}) { Get(CategoryWatch).Error(format, args...) }

func Shell(format string, args ...interface{})      { Get(CategoryShell).Info(format, args...) }
func ShellDebug(format string, args ...interface{}) { Get(CategoryShell).Debug(format, args...) }
func ShellWarn(format string, args ...interface{})  { Get(CategoryShell).Warn(format, args...) }
func ShellError(format string, args ...interface{}) { Get(CategoryShell).Error(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
