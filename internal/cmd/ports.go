package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmbridge/vmbridge/internal/control"
	"github.com/vmbridge/vmbridge/internal/ports"
)

var portsCmd = &cobra.Command{
	Use:   "ports <session-id> [list|enable <port>|disable <port>|watch]",
	Short: "Inspect or change a session's forwarded ports",
	Long: `Query or mutate the port state of a running session.

  vmbridge ports <id>               show enabled/active/inactive ports
  vmbridge ports <id> enable 8080   enable forwarding for a port
  vmbridge ports <id> disable 8080  withdraw a port (it may stay active
                                    until the guest unbinds it)
  vmbridge ports <id> watch         stream state changes until interrupted`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	action := "list"
	if len(args) > 1 {
		action = args[1]
	}

	client, err := control.Dial(sessionID)
	if err != nil {
		return err
	}
	defer client.Close()

	switch action {
	case "list":
		state, err := client.PortList()
		if err != nil {
			return err
		}
		printPortState(state)
		return nil

	case "enable", "disable":
		if len(args) != 3 {
			return fmt.Errorf("usage: vmbridge ports <session-id> %s <port>", action)
		}
		port, err := ports.Parse(args[2])
		if err != nil {
			return err
		}
		state, err := client.SetPortEnabled(port, action == "enable")
		if err != nil {
			return err
		}
		printPortState(state)
		return nil

	case "watch":
		return client.WatchPorts(func(state *control.PortState) bool {
			printPortState(state)
			fmt.Println()
			return true
		})

	default:
		return fmt.Errorf("unknown action %q (want list, enable, disable, or watch)", action)
	}
}

func printPortState(state *control.PortState) {
	fmt.Printf("enabled:  %s\n", formatPorts(state.Enabled))
	fmt.Printf("active:   %s\n", formatPorts(state.Active))
	fmt.Printf("inactive: %s\n", formatPorts(state.Inactive))
}

func formatPorts(ps []uint16) string {
	if len(ps) == 0 {
		return "-"
	}
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", p)
	}
	return out
}
