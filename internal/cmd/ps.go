package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vmbridge/vmbridge/internal/session"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List VM sessions",
	Long:  `List recorded VM sessions with their status and details.`,
	RunE:  runPs,
}

func init() {
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}

	sessions, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVM\tSTATUS\tDEBUG\tSTARTED")
	_, _ = fmt.Fprintln(w, "--\t--\t------\t-----\t-------")

	for _, sess := range sessions {
		started := sess.StartedAt.Format("2006-01-02 15:04:05")
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			sess.ID,
			sess.VMName,
			sess.Status,
			sess.DebugLevel,
			started,
		)
	}

	_ = w.Flush()
	return nil
}
