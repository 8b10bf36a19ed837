package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAudit(t *testing.T, dir string) []AuditEvent {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	f, err := os.Open(filepath.Join(dir, ".filemarker", "logs", date+"_audit.log"))
	require.NoError(t, err)
	defer f.Close()

	var events []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func TestAudit_WritesEvents(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Config{DebugMode: true}))

	a := Audit("run-1", CategorySelect)
	a.Selection("first or third", []string{"first", "third"}, 1, false)
	a.Deselected(2)
	a.Command("go test ./...", 1, 20*time.Millisecond, nil)
	a.Run(1, []string{"./a"}, time.Second)
	a.Error("mark.py", errors.New("bad"))
	CloseAll()

	events := readAudit(t, dir)
	require.Len(t, events, 5)
	assert.Equal(t, AuditSelection, events[0].EventType)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, "select", events[0].Category)
	assert.Equal(t, "first or third", events[0].Target)
	assert.False(t, events[2].Success)
	assert.Equal(t, int64(20), events[2].DurationMs)
	assert.False(t, events[3].Success)
	assert.Equal(t, "bad", events[4].Error)
}

func TestAudit_ProductionModeIsNoop(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Config{}))

	Audit("run-1", CategorySelect).Deselected(3)

	_, err := os.Stat(filepath.Join(dir, ".filemarker"))
	assert.True(t, os.IsNotExist(err))
}
