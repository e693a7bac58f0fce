package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	attachRunID string
	attachLine  string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a live chat session and send it input",
	Long: `Send lines to a chat session started by "run --chat-mode" in this
process. With --line a single line is sent; otherwise lines are read
from stdin until EOF.`,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachRunID, "run-id", "", "Run id of the chat session")
	attachCmd.Flags().StringVar(&attachLine, "line", "", "Single line to send (stdin when omitted)")
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if attachRunID == "" {
		return exitf(exitMisuse, "run-id is required")
	}

	env, err := newCLIEnv()
	if err != nil {
		return err
	}

	meta, err := streamRegistry.Lookup(attachRunID)
	if err != nil {
		return exitf(exitFailure, "no chat session for run_id=%s", attachRunID)
	}
	session := meta.Session

	fmt.Fprintf(out, "attach run_id=%s log=%s\n", attachRunID, session.LogPath())

	if attachLine != "" {
		if err := session.SendLine(attachLine); err != nil {
			return exitf(exitFailure, "failed to send line: %v", err)
		}
	} else {
		fmt.Fprintln(out, "reading lines from stdin; EOF ends the attach")
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			if err := session.SendLine(scanner.Text()); err != nil {
				return exitf(exitFailure, "failed to send line: %v", err)
			}
		}
	}

	env.evidence.EmitChatAttach(attachRunID, meta.MissionID, meta.Role, session.LogPath())
	return nil
}
