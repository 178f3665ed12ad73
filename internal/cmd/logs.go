package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmbridge/vmbridge/internal/control"
	"github.com/vmbridge/vmbridge/internal/session"
)

var (
	logsTail    int
	logsFollow  bool
	logsConsole bool
)

var logsCmd = &cobra.Command{
	Use:   "logs <session-id>",
	Short: "Show guest log output for a session",
	Long: `Show the guest's structured log lines from a running session, or with
--console the raw console capture file (which also works for stopped
sessions).`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsTail, "tail", 0, "show only the last N lines (0 = all buffered)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream new lines until interrupted")
	logsCmd.Flags().BoolVar(&logsConsole, "console", false, "print the raw console capture file instead")
}

func runLogs(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	if logsConsole {
		return printConsoleFile(sessionID)
	}

	client, err := control.Dial(sessionID)
	if err != nil {
		return err
	}
	defer client.Close()

	if logsFollow {
		return client.FollowLogs(func(line control.LogLine) bool {
			fmt.Printf("%s %s: %s\n", line.Time, line.Tag, line.Line)
			return true
		})
	}

	lines, err := client.LogTail(logsTail)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Printf("%s %s: %s\n", line.Time, line.Tag, line.Line)
	}
	return nil
}

func printConsoleFile(sessionID string) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	sess, err := store.Load(sessionID)
	if err != nil {
		return err
	}
	if sess.ConsolePath == "" {
		return fmt.Errorf("session %s has no console capture (debug level %s)", sessionID, sess.DebugLevel)
	}

	data, err := os.ReadFile(sess.ConsolePath)
	if err != nil {
		return fmt.Errorf("failed to read console file: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
