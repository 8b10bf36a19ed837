package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType names a structured audit record.
type AuditEventType string

const (
	AuditSelection  AuditEventType = "selection"   // marks collected and expression composed
	AuditDeselect   AuditEventType = "deselect"    // tests dropped by the selection
	AuditCommand    AuditEventType = "command"     // subprocess finished
	AuditRun        AuditEventType = "run"         // go test plan finished
	AuditErrorEvent AuditEventType = "error_event" // failure worth keeping
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat,omitempty"`
	RunID      string                 `json:"run,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger writes audit events scoped to a run.
type AuditLogger struct {
	runID    string
	category Category
}

// InitAudit opens <logs>/<date>_audit.log. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	loggersMu.RLock()
	dir := logsDir
	loggersMu.RUnlock()
	if dir == "" {
		return fmt.Errorf("logging not initialized")
	}

	date := time.Now().Format("2006-01-02")
	file, err := os.OpenFile(filepath.Join(dir, fmt.Sprintf("%s_audit.log", date)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an audit logger bound to a run id and category.
func Audit(runID string, category Category) *AuditLogger {
	return &AuditLogger{runID: runID, category: category}
}

// Log writes an event. Defaults are filled from the logger scope.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}
	if event.Category == "" {
		event.Category = string(a.category)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// Selection records a composed selection.
func (a *AuditLogger) Selection(expression string, marks []string, files int, deselectAll bool) {
	a.Log(AuditEvent{
		EventType: AuditSelection,
		Target:    expression,
		Success:   true,
		Fields: map[string]interface{}{
			"marks":        marks,
			"files":        files,
			"deselect_all": deselectAll,
		},
	})
}

// Deselected records how many tests a selection dropped.
func (a *AuditLogger) Deselected(count int) {
	a.Log(AuditEvent{
		EventType: AuditDeselect,
		Success:   true,
		Fields:    map[string]interface{}{"count": count},
	})
}

// Command records a finished subprocess.
func (a *AuditLogger) Command(command string, exitCode int, duration time.Duration, err error) {
	event := AuditEvent{
		EventType:  AuditCommand,
		Target:     command,
		Success:    err == nil && exitCode == 0,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"exit": exitCode},
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.Log(event)
}

// Run records a finished go test plan.
func (a *AuditLogger) Run(invocations int, failed []string, duration time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditRun,
		Success:    len(failed) == 0,
		DurationMs: duration.Milliseconds(),
		Fields: map[string]interface{}{
			"invocations": invocations,
			"failed":      failed,
		},
	})
}

// Error records a failure.
func (a *AuditLogger) Error(target string, err error) {
	a.Log(AuditEvent{EventType: AuditErrorEvent, Target: target, Error: err.Error()})
}
