package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmbridge/vmbridge/internal/control"
	"github.com/vmbridge/vmbridge/internal/session"
)

var (
	pruneAll      bool
	pruneConsoles bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stopped sessions",
	Long: `Remove stopped session records and their stale control sockets.

With --consoles the console capture files are deleted as well.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVarP(&pruneAll, "all", "a", false, "remove all sessions (including running)")
	pruneCmd.Flags().BoolVar(&pruneConsoles, "consoles", false, "also delete console capture files")
}

func runPrune(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return fmt.Errorf("failed to access session store: %w", err)
	}

	sessions, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	removedCount := 0
	for _, sess := range sessions {
		if !pruneAll && sess.Status != "stopped" {
			continue
		}

		if err := store.Delete(sess.ID); err != nil {
			fmt.Printf("Warning: failed to delete session %s: %v\n", sess.ID, err)
			continue
		}
		if socketPath, err := control.SocketPath(sess.ID); err == nil {
			os.Remove(socketPath)
		}
		if pruneConsoles && sess.ConsolePath != "" {
			os.Remove(sess.ConsolePath)
		}
		fmt.Printf("Removed session: %s\n", sess.ID)
		removedCount++
	}

	if removedCount == 0 {
		fmt.Println("No sessions to remove.")
	} else {
		fmt.Printf("Removed %d session(s).\n", removedCount)
	}
	return nil
}
