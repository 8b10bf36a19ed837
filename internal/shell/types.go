// Package shell runs external commands (git, go test) with timeouts, output
// limits and audit events.
package shell

import (
	"io"
	"strings"
	"time"
)

// Command describes a process to run.
type Command struct {
	Binary           string        `json:"binary"`
	Arguments        []string      `json:"arguments,omitempty"`
	WorkingDirectory string        `json:"working_directory,omitempty"`
	Environment      []string      `json:"environment,omitempty"` // KEY=VALUE, appended to the inherited environment
	Timeout          time.Duration `json:"timeout,omitempty"`

	// Stream, when set, also receives stdout and stderr as they are written.
	Stream io.Writer `json:"-"`
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// Result is the outcome of one command.
type Result struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	// Killed is set when the command was stopped by timeout or cancellation.
	Killed     bool   `json:"killed,omitempty"`
	KillReason string `json:"kill_reason,omitempty"`

	Truncated      bool  `json:"truncated,omitempty"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`
}

// Succeeded reports whether the command ran to completion with exit code 0.
func (r *Result) Succeeded() bool {
	return r != nil && !r.Killed && r.ExitCode == 0
}

// Combined returns stdout followed by stderr.
func (r *Result) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// AuditEventType identifies an audit event.
type AuditEventType string

const (
	AuditEventStart    AuditEventType = "start"
	AuditEventComplete AuditEventType = "complete"
	AuditEventKilled   AuditEventType = "killed"
	AuditEventError    AuditEventType = "error"
)

// AuditEvent is emitted around every execution.
type AuditEvent struct {
	Type      AuditEventType
	Timestamp time.Time
	Command   Command
	Result    *Result
	Err       error
}
