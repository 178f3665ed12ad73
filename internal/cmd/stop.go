package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmbridge/vmbridge/internal/control"
	"github.com/vmbridge/vmbridge/internal/session"
)

var stopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop a running VM session",
	Long: `Ask a running session to shut down via its control socket. If the
session process is gone, the stored session is marked stopped instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	client, err := control.Dial(sessionID)
	if err == nil {
		defer client.Close()
		if err := client.Stop(); err != nil {
			return fmt.Errorf("failed to stop session %s: %w", sessionID, err)
		}
		fmt.Printf("Session %s stopping.\n", sessionID)
		return nil
	}
	Debug("No live control socket for %s: %v", sessionID, err)

	// Session process is gone; reconcile the stored record.
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	sess, err := store.Load(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != "stopped" {
		sess.Status = "stopped"
		now := time.Now()
		sess.StoppedAt = &now
		if err := store.Save(sess); err != nil {
			return err
		}
	}
	fmt.Printf("Session %s was not running; marked stopped.\n", sessionID)
	return nil
}
