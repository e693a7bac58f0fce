package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalsWatchRequiresPath(t *testing.T) {
	chdirTemp(t)

	_, stderr, code := executeCLI(t, "signals", "watch")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "path is required")
}

func TestSignalsWatchPostsMatchingRows(t *testing.T) {
	dir := chdirTemp(t)

	var mu sync.Mutex
	var posts []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		posts = append(posts, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"sig-9","status":"pending"}`)
	}))
	defer srv.Close()

	logPath := filepath.Join(dir, "logs", "dangerous.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
	require.NoError(t, os.WriteFile(logPath,
		[]byte(`{"event":"dangerous_command","command":"rm -rf /tmp/x","mission_id":"m1"}`+"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		stdout string
		code   int
	}
	done := make(chan result, 1)
	go func() {
		stdout, _, code := executeCLIContext(t, ctx, nil,
			"signals", "watch",
			"--path", logPath,
			"--project", "acme",
			"--interval", "25ms",
			"--base-url", srv.URL)
		done <- result{stdout: stdout, code: code}
	}()

	countPosts := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(posts)
	}

	// the pre-existing row is posted on startup
	require.Eventually(t, func() bool { return countPosts() == 1 }, 3*time.Second, 10*time.Millisecond)

	// a row matching no rule is skipped; a partial row is held back
	// until its newline arrives
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"event":"routine","command":"ls"}` + "\n")
	require.NoError(t, err)
	_, err = f.WriteString(`{"event":"failing_test","message":"unit suite red"`)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, countPosts())

	_, err = f.WriteString("}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return countPosts() == 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	res := <-done
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "signals_watch path=")
	assert.Contains(t, res.stdout, "signals_watch_posted")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posts, 2)
	assert.Equal(t, "acme", posts[0]["project_id"])
	assert.Equal(t, "dangerous_command", posts[0]["type"])
	assert.Equal(t, "warning", posts[0]["severity"])
	assert.Equal(t, "pending", posts[0]["status"])
	assert.Equal(t, "rm -rf /tmp/x", posts[0]["message"])
	assert.Equal(t, "m1", posts[0]["mission_id"])
	assert.Equal(t, "failing_test", posts[1]["type"])
	assert.Equal(t, "error", posts[1]["severity"])
	assert.Equal(t, "unit suite red", posts[1]["message"])
}
