package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/clients"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/signals"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Signal pipeline helpers",
}

var (
	watchPath     string
	watchProject  string
	watchInterval time.Duration
	watchBaseURL  string
)

var signalsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a dangerous-command log and post matching rows as signals",
	Long: `Tail a dangerous-command JSONL log and post one pending signal per row
that matches a classification rule. Rows already in the file are posted
on startup; new rows are picked up through filesystem notifications,
with a polling fallback for filesystems that deliver none.

Runs until interrupted. Rows whose post fails are logged and skipped,
never retried.`,
	RunE: runSignalsWatch,
}

func init() {
	signalsWatchCmd.Flags().StringVar(&watchPath, "path", "", "Dangerous-command JSONL log to follow")
	signalsWatchCmd.Flags().StringVar(&watchProject, "project", "demo", "Project key for posted signals")
	signalsWatchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Polling fallback interval")
	signalsWatchCmd.Flags().StringVar(&watchBaseURL, "base-url", "", "Signals API base URL (default MISSIONS_HUB_SIGNALS_BASE)")
	signalsCmd.AddCommand(signalsWatchCmd)
	rootCmd.AddCommand(signalsCmd)
}

func runSignalsWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if watchPath == "" {
		return exitf(exitMisuse, "path is required")
	}

	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	base := watchBaseURL
	if base == "" {
		base = env.cfg.Clients.SignalsBase
	}

	tail := &logTail{
		path:       filepath.Clean(watchPath),
		project:    watchProject,
		classifier: signals.NewClassifier(),
		client:     clients.NewSignalsClient(base, 5*time.Second, env.log),
		out:        out,
		log:        env.log,
	}

	watcher, err := fsnotify.NewBufferedWatcher(64)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: the log may not exist yet,
	// and rename-based rotation re-creates it.
	dir := filepath.Dir(tail.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch dir %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fmt.Fprintf(out, "signals_watch path=%s project=%s\n", tail.path, tail.project)
	tail.drain(ctx)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != tail.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			tail.drain(ctx)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			env.log.Warn("watch error", "error", werr)
		case <-ticker.C:
			tail.drain(ctx)
		}
	}
}

// logTail follows one JSONL log, posting each complete new row at most
// once.
type logTail struct {
	path       string
	project    string
	classifier *signals.Classifier
	client     *clients.SignalsClient
	out        io.Writer
	log        *logger.Logger

	offset int64
}

// drain reads complete rows past the current offset and posts the ones
// that classify. Truncation resets the offset; a trailing partial row
// stays unread until its newline arrives.
func (t *logTail) drain(ctx context.Context) {
	file, err := os.Open(t.path)
	if err != nil {
		return // not created yet
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return
	}
	if info.Size() < t.offset {
		t.offset = 0
	}
	if info.Size() == t.offset {
		return
	}

	if _, err := file.Seek(t.offset, io.SeekStart); err != nil {
		t.log.Warn("failed to seek dangerous log", "path", t.path, "error", err)
		return
	}
	data := make([]byte, info.Size()-t.offset)
	if _, err := io.ReadFull(file, data); err != nil {
		t.log.Warn("failed to read dangerous log", "path", t.path, "error", err)
		return
	}

	posted := 0
	consumed := int64(0)
	for {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			break
		}
		line := data[:nl]
		data = data[nl+1:]
		consumed += int64(nl + 1)

		if t.postRow(ctx, line) {
			posted++
		}
	}
	t.offset += consumed

	if posted > 0 {
		fmt.Fprintf(t.out, "signals_watch_posted file=%s posted=%d offset=%d\n", t.path, posted, t.offset)
	}
}

// postRow classifies one raw JSONL row and posts it; malformed and
// unclassifiable rows are skipped.
func (t *logTail) postRow(ctx context.Context, line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}

	var row document.Doc
	if err := json.Unmarshal(line, &row); err != nil {
		t.log.Debug("skipping malformed dangerous log row", "path", t.path, "error", err)
		return false
	}

	severity, ok := t.classifier.Classify(row)
	if !ok {
		return false
	}

	message := row.String("command")
	if message == "" {
		message = row.String("message")
	}

	_, err := t.client.PostSignal(ctx, clients.SignalPayload{
		ProjectID: t.project,
		MissionID: row.String("mission_id"),
		Type:      row.String("event"),
		Severity:  string(severity),
		Status:    "pending",
		Message:   message,
	})
	if err != nil {
		t.log.Warn("failed to post watched signal", "error", err)
		return false
	}
	return true
}
