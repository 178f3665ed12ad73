package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// Debug prints a message if debug mode is enabled
func Debug(format string, args ...interface{}) {
	if debug {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmbridge",
	Short: "vmbridge - guest VM console and port forwarding bridge",
	Long: `vmbridge launches a guest VM session and bridges its output to the host:
console bytes to a per-session file, guest log lines to an in-memory log
you can tail, and guest port bindings reconciled against the ports you
enable.

Start a session:
  vmbridge start
  vmbridge start --vm-config ~/vms/dev.json --ports 8080,443

Inspect a running session:
  vmbridge ps
  vmbridge ports <session-id>
  vmbridge logs <session-id> --follow

Manage sessions:
  vmbridge stop <session-id>
  vmbridge prune`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vmbridge/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
