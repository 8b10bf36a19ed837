package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"filemarker/internal/logging"
)

// Runner executes commands. Executor is the real implementation; tests
// substitute fakes.
type Runner interface {
	// Execute runs cmd. A non-zero exit is reported in the Result, not as an
	// error. The error is reserved for commands that could not be started.
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// ErrEmptyBinary is returned for a command without a binary.
var ErrEmptyBinary = errors.New("binary is required")

// Config holds executor defaults.
type Config struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Minute,
		MaxOutputBytes: 4 * 1024 * 1024,
	}
}

// waitDelay bounds how long a killed command may hold its output pipes open.
const waitDelay = 500 * time.Millisecond

// Executor runs commands directly on the host using os/exec.
type Executor struct {
	mu     sync.RWMutex
	config Config

	auditCallback func(AuditEvent)
}

// NewExecutor creates an executor with default config.
func NewExecutor() *Executor {
	return NewExecutorWithConfig(DefaultConfig())
}

// NewExecutorWithConfig creates an executor with custom config.
func NewExecutorWithConfig(config Config) *Executor {
	defaults := DefaultConfig()
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = defaults.MaxOutputBytes
	}
	logging.ShellDebug("Creating Executor: timeout=%s, maxOutput=%d bytes",
		config.DefaultTimeout, config.MaxOutputBytes)
	return &Executor{config: config}
}

// SetAuditCallback sets the callback for audit events.
func (e *Executor) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

func (e *Executor) emitAudit(event AuditEvent) {
	e.mu.RLock()
	callback := e.auditCallback
	e.mu.RUnlock()

	if callback != nil {
		callback(event)
	}
}

// Execute runs a command on the host.
func (e *Executor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryShell, "Command execution")
	defer timer.Stop()

	if cmd.Binary == "" {
		return nil, ErrEmptyBinary
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	logging.ShellDebug("Executing: %s (dir=%s, timeout=%s)", cmd, cmd.WorkingDirectory, timeout)

	e.emitAudit(AuditEvent{Type: AuditEventStart, Timestamp: time.Now(), Command: cmd})

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.WaitDelay = waitDelay
	if len(cmd.Environment) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Environment...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	var stdout, stderr io.Writer = stdoutLimited, stderrLimited
	if cmd.Stream != nil {
		stream := &syncWriter{w: cmd.Stream}
		stdout = io.MultiWriter(stdoutLimited, stream)
		stderr = io.MultiWriter(stderrLimited, stream)
	}
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	result := &Result{ExitCode: -1, StartedAt: time.Now()}
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		logging.ShellWarn("Command output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.Killed = true
			result.KillReason = fmt.Sprintf("timeout after %s", timeout)
			logging.ShellWarn("Command killed (timeout): %s after %s", cmd.Binary, timeout)
			e.emitAudit(AuditEvent{Type: AuditEventKilled, Timestamp: time.Now(), Command: cmd, Result: result})
			return result, nil
		case errors.Is(execCtx.Err(), context.Canceled):
			result.Killed = true
			result.KillReason = "context canceled"
			logging.ShellDebug("Command canceled: %s", cmd.Binary)
			e.emitAudit(AuditEvent{Type: AuditEventKilled, Timestamp: time.Now(), Command: cmd, Result: result})
			return result, nil
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
			logging.ShellDebug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
		default:
			logging.ShellError("Command failed: %s - %v", cmd.Binary, err)
			e.emitAudit(AuditEvent{Type: AuditEventError, Timestamp: time.Now(), Command: cmd, Result: result, Err: err})
			return result, fmt.Errorf("failed to run %s: %w", cmd.Binary, err)
		}
	} else {
		result.ExitCode = 0
	}

	e.emitAudit(AuditEvent{Type: AuditEventComplete, Timestamp: time.Now(), Command: cmd, Result: result})
	logging.Shell("Command completed: %s -> exit=%d, duration=%s, stdout=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Stdout))

	return result, nil
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // full length, or exec reports a short write
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}

// syncWriter serializes writes from the stdout and stderr copiers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
