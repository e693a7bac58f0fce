// Package evidence appends normalized JSONL records to the CI-visible
// evidence log. The log file is an opt-in marker: when it does not
// exist, emission is a no-op. Writes are best-effort and never fail
// the caller.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Well-known evidence events
const (
	EventCLICall    = "cli_call"
	EventChatRun    = "orchestrator_chat_run"
	EventChatAttach = "orchestrator_chat_attach"
	EventSelfHeal   = "workflow_self_heal_attempt"
	EventSelfHealOK = "workflow_self_heal_success"
)

// FileRef points at an artifact with a truncated content digest
type FileRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Emitter appends to one evidence log
type Emitter struct {
	path string
	mu   sync.Mutex
}

// New creates an emitter for the given evidence path
func New(path string) *Emitter {
	return &Emitter{path: path}
}

// Path returns the evidence log location
func (e *Emitter) Path() string {
	return e.path
}

// Emit appends one record {ts, event, ...fields}. Missing log file
// means evidence collection is off; errors are swallowed.
func (e *Emitter) Emit(event string, fields document.Doc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := os.Stat(e.path); err != nil {
		return
	}

	record := document.Doc{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"event": event,
	}
	record.Merge(fields)

	line, err := json.Marshal(record)
	if err != nil {
		return
	}

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(line, '\n'))
}

// EmitCLICall records one REST call made by the CLI
func (e *Emitter) EmitCLICall(endpoint, method string, statusCode int, duration time.Duration, engine, runID, url string) {
	e.Emit(EventCLICall, document.Doc{
		"endpoint":    endpoint,
		"method":      method,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
		"engine":      engine,
		"run_id":      runID,
		"url_hash":    ShortDigest(url),
	})
}

// EmitChatRun records a chat/stream run with its trace log
func (e *Emitter) EmitChatRun(runID, missionID, engine string, roles []string, status, logPath string) {
	fields := document.Doc{
		"run_id":        runID,
		"mission_id":    missionID,
		"engine":        engine,
		"roles":         roles,
		"status":        status,
		"log_path":      filepath.ToSlash(logPath),
		"log_path_hash": ShortDigest(filepath.ToSlash(logPath)),
		"files":         []FileRef{FileDigest(logPath)},
	}
	if sha := GitSHA(); sha != "" {
		fields["git_sha"] = sha
	}
	e.Emit(EventChatRun, fields)
}

// EmitChatAttach records an attach to a live chat/stream session
func (e *Emitter) EmitChatAttach(runID, missionID, role, logPath string) {
	fields := document.Doc{
		"run_id":        runID,
		"mission_id":    missionID,
		"role":          role,
		"log_path":      filepath.ToSlash(logPath),
		"log_path_hash": ShortDigest(filepath.ToSlash(logPath)),
		"files":         []FileRef{FileDigest(logPath)},
	}
	if sha := GitSHA(); sha != "" {
		fields["git_sha"] = sha
	}
	e.Emit(EventChatAttach, fields)
}

// ShortDigest returns the first 16 hex chars of the SHA-256 of text
func ShortDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// FileDigest digests a file's contents (truncated); when the file is
// unreadable it falls back to digesting the path string so the record
// still carries a stable identity.
func FileDigest(path string) FileRef {
	ref := FileRef{Path: filepath.ToSlash(path)}
	data, err := os.ReadFile(path)
	if err != nil {
		ref.SHA256 = ShortDigest(ref.Path)
		return ref
	}
	sum := sha256.Sum256(data)
	ref.SHA256 = hex.EncodeToString(sum[:])[:16]
	return ref
}

// GitSHA resolves the commit under audit: GITHUB_SHA when set, else
// the local HEAD, else empty.
func GitSHA() string {
	if sha := os.Getenv("GITHUB_SHA"); sha != "" {
		return sha
	}
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
