package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

func newTestEmitter(t *testing.T) *Emitter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ci_evidence.jsonl")
	// The log file is the opt-in marker; tests turn evidence on
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return New(path)
}

func readRecords(t *testing.T, path string) []document.Doc {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []document.Doc
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec document.Doc
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestEmitSkipsWhenLogMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci_evidence.jsonl")
	e := New(path)

	e.Emit("cli_call", document.Doc{"status_code": 200})

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEmitAppendsRecord(t *testing.T) {
	e := newTestEmitter(t)

	e.Emit("custom_event", document.Doc{"note": "hello"})
	e.Emit("custom_event", document.Doc{"note": "again"})

	records := readRecords(t, e.Path())
	require.Len(t, records, 2)
	assert.Equal(t, "custom_event", records[0].String("event"))
	assert.Equal(t, "hello", records[0].String("note"))
	assert.NotEmpty(t, records[0].String("ts"))
}

func TestEmitCLICall(t *testing.T) {
	e := newTestEmitter(t)

	e.EmitCLICall("/api/missions", "GET", 200, 42*time.Millisecond, "codex_cli", "run-1", "http://127.0.0.1:8000/api/missions")

	records := readRecords(t, e.Path())
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, EventCLICall, rec.String("event"))
	assert.Equal(t, "/api/missions", rec.String("endpoint"))
	assert.Equal(t, "GET", rec.String("method"))
	assert.Len(t, rec.String("url_hash"), 16)
}

func TestEmitChatAttachCarriesLogPath(t *testing.T) {
	e := newTestEmitter(t)

	logPath := filepath.Join(t.TempDir(), "run-9.log")
	require.NoError(t, os.WriteFile(logPath, []byte("[STDOUT] ready\n"), 0o644))

	e.EmitChatAttach("run-9", "mission-9", "tester", logPath)

	records := readRecords(t, e.Path())
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, EventChatAttach, rec.String("event"))
	assert.Equal(t, filepath.ToSlash(logPath), rec.String("log_path"))
	assert.Len(t, rec.String("log_path_hash"), 16)
}

func TestShortDigestStable(t *testing.T) {
	assert.Equal(t, ShortDigest("abc"), ShortDigest("abc"))
	assert.Len(t, ShortDigest("abc"), 16)
	assert.NotEqual(t, ShortDigest("abc"), ShortDigest("abd"))
}

func TestFileDigestContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	ref := FileDigest(path)
	assert.Equal(t, filepath.ToSlash(path), ref.Path)
	assert.Len(t, ref.SHA256, 16)

	missing := FileDigest(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Len(t, missing.SHA256, 16)
}
