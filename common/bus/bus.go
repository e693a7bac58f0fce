// Package bus is the role message bus: per-role append-only JSON
// mailboxes used for handoff metadata between sequentially-run roles.
// It is advisory, not a durable queue; files are rewritten whole and
// atomically so concurrent readers always see a complete array.
package bus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Message is one mailbox entry
type Message = document.Doc

// Append loads the array at path (missing or corrupt counts as empty),
// appends the message with a UTC ts added if absent, and rewrites the
// file atomically.
func Append(path string, message Message) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create bus dir: %w", err)
	}

	history := load(path)

	entry := message.Clone()
	if entry == nil {
		entry = document.New()
	}
	if entry.String("ts") == "" {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339)
	}
	history = append(history, entry)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize bus history: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bus file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace bus file: %w", err)
	}
	return nil
}

// Read returns every message at path, empty when missing or corrupt
func Read(path string) []Message {
	return load(path)
}

func load(path string) []Message {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil
	}
	return history
}

// Bus addresses mailboxes by role name under a base directory
type Bus struct {
	baseDir string
}

// New creates a bus rooted at baseDir
func New(baseDir string) *Bus {
	return &Bus{baseDir: baseDir}
}

// PathFor returns the mailbox file for a role
func (b *Bus) PathFor(role string) string {
	return filepath.Join(b.baseDir, role+".json")
}

// Send appends payload to the role's mailbox and returns its path
func (b *Bus) Send(role string, payload Message) (string, error) {
	path := b.PathFor(role)
	if err := Append(path, payload); err != nil {
		return "", err
	}
	return path, nil
}

// Receive returns the latest message for the role with the ts field
// stripped, or an empty document when the mailbox is empty.
func (b *Bus) Receive(role string) Message {
	history := load(b.PathFor(role))
	if len(history) == 0 {
		return document.New()
	}
	latest := history[len(history)-1].Clone()
	delete(latest, "ts")
	return latest
}
