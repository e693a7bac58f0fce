// Package audit maintains the tamper-evident event log: a JSONL
// manifest, a sibling file holding the rolling SHA-256 of the chain,
// and an optional detached signature.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

const (
	manifestName = "manifest.jsonl"
	chainName    = "manifest.sha256"
	sigName      = "manifest.sig"
)

// Chain appends to and verifies one manifest/chain pair.
// All appenders go through one mutex; the read-modify-write of the
// chain file must never interleave.
type Chain struct {
	dir string
	mu  sync.Mutex

	signer *Signer

	// onAppend runs after every successful append, under the lock;
	// keep it cheap
	onAppend func()
}

// OnAppend registers a callback invoked after each successful append.
// Used to feed the audit_appends_total counter.
func (c *Chain) OnAppend(fn func()) {
	c.onAppend = fn
}

// NewChain creates a chain rooted at dir. The directory is created
// on first append.
func NewChain(dir string) *Chain {
	return &Chain{dir: dir}
}

// NewSignedChain creates a chain that signs the manifest after each
// append. Signing is best-effort; see Signer.
func NewSignedChain(dir string, signer *Signer) *Chain {
	return &Chain{dir: dir, signer: signer}
}

// ManifestPath returns the manifest location
func (c *Chain) ManifestPath() string {
	return filepath.Join(c.dir, manifestName)
}

// ChainPath returns the rolling-hash file location
func (c *Chain) ChainPath() string {
	return filepath.Join(c.dir, chainName)
}

// SigPath returns the detached signature location
func (c *Chain) SigPath() string {
	return filepath.Join(c.dir, sigName)
}

// Append serializes the record, folds it into the rolling hash and
// persists both files atomically. Returns the new chain head.
func (c *Chain) Append(record *Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", fmt.Errorf("failed to append audit record: %w", err)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to serialize audit record: %w", err)
	}
	if strings.ContainsRune(string(line), '\n') {
		return "", fmt.Errorf("audit record serialization produced an embedded newline")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audit dir: %w", err)
	}

	lines, err := readLines(c.ManifestPath())
	if err != nil {
		return "", fmt.Errorf("failed to read audit manifest: %w", err)
	}
	prev, err := readTrimmed(c.ChainPath())
	if err != nil {
		return "", fmt.Errorf("failed to read audit chain: %w", err)
	}

	newHash := fold(prev, string(line))

	lines = append(lines, string(line))
	if err := atomicWriteJSONL(c.ManifestPath(), lines); err != nil {
		return "", fmt.Errorf("failed to write audit manifest: %w", err)
	}
	if err := atomicWrite(c.ChainPath(), newHash); err != nil {
		return "", fmt.Errorf("failed to write audit chain: %w", err)
	}

	if c.signer != nil {
		// Signature failures are recorded in the status, never raised
		c.signer.Sign(c.ManifestPath(), c.SigPath())
	}

	if c.onAppend != nil {
		c.onAppend()
	}

	return newHash, nil
}

// Verify recomputes the chain from the manifest and compares it to
// the stored head. A mismatch is fatal: audit writes must stop.
func (c *Chain) Verify() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.ManifestPath()); os.IsNotExist(err) {
		return nil
	}

	lines, err := readLines(c.ManifestPath())
	if err != nil {
		return fmt.Errorf("failed to read audit manifest: %w", err)
	}
	expected := ""
	for _, line := range lines {
		expected = fold(expected, line)
	}
	current, err := readTrimmed(c.ChainPath())
	if err != nil {
		return fmt.Errorf("failed to read audit chain: %w", err)
	}
	if expected != current {
		return apperr.Fatal(apperr.CodeAuditTampered, "audit chain hash mismatch", nil)
	}
	return nil
}

// Rebuild recomputes the chain head from the manifest alone and
// rewrites the chain file. Missing lines are not resurrected.
func (c *Chain) Rebuild() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.ManifestPath()); os.IsNotExist(err) {
		return "", fmt.Errorf("failed to rebuild audit chain: manifest not found")
	}

	lines, err := readLines(c.ManifestPath())
	if err != nil {
		return "", fmt.Errorf("failed to read audit manifest: %w", err)
	}
	expected := ""
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		expected = fold(expected, line)
	}
	if err := atomicWrite(c.ChainPath(), expected); err != nil {
		return "", fmt.Errorf("failed to write audit chain: %w", err)
	}
	return expected, nil
}

// Head returns the current chain hash, empty when nothing was appended
func (c *Chain) Head() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return readTrimmed(c.ChainPath())
}

// fold advances the rolling hash by one manifest line:
// H_0 = sha256(line_0), H_i = sha256(H_{i-1} + "\n" + line_i)
func fold(prev, line string) string {
	if prev == "" {
		return Digest(line)
	}
	return Digest(prev + "\n" + line)
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// atomicWrite writes content via a temp file and rename, so a crash
// mid-write leaves the previous consistent file in place
func atomicWrite(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// atomicWriteJSONL validates every line parses before the rename
func atomicWriteJSONL(path string, lines []string) error {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return fmt.Errorf("manifest line is not valid JSON: %w", err)
		}
	}
	return atomicWrite(path, strings.Join(lines, "\n"))
}
