package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// executeCLI runs the root command against a fresh flag state and maps
// the returned error onto the exit-code contract, the way Execute
// would before calling os.Exit.
func executeCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	return executeCLIContext(t, context.Background(), nil, args...)
}

func executeCLIContext(t *testing.T, ctx context.Context, stdin io.Reader, args ...string) (string, string, int) {
	t.Helper()
	resetCLIFlags()

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	code := exitOK
	if err != nil {
		code = exitFailure
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(&errBuf, msg)
		}
	}
	return outBuf.String(), errBuf.String(), code
}

// resetCLIFlags restores every subcommand flag to its default so tests
// do not leak flag state into each other.
func resetCLIFlags() {
	var walk func(*cobra.Command)
	walk = func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		})
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// chdirTemp moves the test into its own temp working directory so the
// CLI's relative outputs (cli_runs/, data/, observability/) stay
// isolated.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

// touchEvidence pre-creates the evidence log; the emitter only appends
// to an existing file.
func touchEvidence(t *testing.T) string {
	t.Helper()
	path := filepath.Join("observability", "policy", "ci_evidence.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func readJSONFile(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}
