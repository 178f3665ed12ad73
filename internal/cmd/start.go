package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vmbridge/vmbridge/internal/bridge"
	"github.com/vmbridge/vmbridge/internal/config"
	"github.com/vmbridge/vmbridge/internal/control"
	"github.com/vmbridge/vmbridge/internal/logring"
	"github.com/vmbridge/vmbridge/internal/ports"
	"github.com/vmbridge/vmbridge/internal/session"
	"github.com/vmbridge/vmbridge/internal/vm"
)

var (
	startVMConfig   string
	startPorts      string
	startDebugLevel string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a VM session with the I/O bridge",
	Long: `Boot the guest described by the VM definition file and run the bridge
for it: console output to a per-session file, guest log lines to the
session log buffer, and port state served over the control socket.

The command runs in the foreground until the VM stops, a stop is
requested over the control socket, or the process receives SIGINT/SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&startVMConfig, "vm-config", "", "VM definition file (default from config)")
	startCmd.Flags().StringVar(&startPorts, "ports", "", "comma-separated ports to enable at start, e.g. 8080,443")
	startCmd.Flags().StringVar(&startDebugLevel, "debug-level", "", "guest capture level: none, partial, or full (default from config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	vmConfigPath := cfg.VMConfig
	if startVMConfig != "" {
		vmConfigPath = startVMConfig
	}
	def, err := vm.LoadDefinition(vmConfigPath)
	if err != nil {
		return err
	}

	levelSpec := cfg.DebugLevel
	if startDebugLevel != "" {
		levelSpec = startDebugLevel
	}
	level, err := vm.ParseDebugLevel(levelSpec)
	if err != nil {
		return err
	}

	enabled, err := ports.FromInts(cfg.Ports)
	if err != nil {
		return fmt.Errorf("invalid ports in config: %w", err)
	}
	if startPorts != "" {
		enabled, err = ports.ParseList(startPorts)
		if err != nil {
			return err
		}
	}

	manager, err := vm.NewManager()
	if err != nil {
		return err
	}
	store, err := session.NewStore()
	if err != nil {
		return err
	}

	sess, err := manager.Create(def, level)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	Debug("Created session %s for VM %q", sess.ID, def.Name)

	consolePath := ""
	if level == vm.DebugFull {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		consolePath = filepath.Join(cfg.LogDir, sess.ID+".log")
	}
	sess.ConsolePath = consolePath
	sess.EnabledPorts = enabled
	if err := store.Save(sess); err != nil {
		return err
	}

	inst, err := manager.Start(sess)
	if err != nil {
		return fmt.Errorf("failed to start VM: %w", err)
	}

	// Stream acquisition or file creation failing here is a hard failure:
	// the session is torn down rather than run half-bridged.
	ring := logring.New(cfg.LogLines)
	handle, err := bridge.Start(inst, consolePath, ring)
	if err != nil {
		_ = manager.Stop(sess.ID)
		return fmt.Errorf("failed to start I/O bridge: %w", err)
	}

	rec := ports.NewReconciler()
	for _, p := range enabled {
		rec.SetEnabled(p, true)
	}
	if reporter, ok := inst.(vm.PortReporter); ok {
		go bridge.FeedPortEvents(rec, reporter.PortEvents())
	}

	stopRequested := make(chan struct{})
	var stopOnce sync.Once
	requestStop := func() {
		stopOnce.Do(func() { close(stopRequested) })
	}

	socketPath, err := control.SocketPath(sess.ID)
	if err != nil {
		handle.Stop()
		_ = manager.Stop(sess.ID)
		return err
	}
	ctl := control.NewServer(socketPath, rec, ring, requestStop)
	if err := ctl.Start(); err != nil {
		handle.Stop()
		_ = manager.Stop(sess.ID)
		return err
	}

	fmt.Printf("Session %s started (VM %q, debug level %s)\n", sess.ID, def.Name, level)
	if handle.Active() {
		fmt.Printf("Console capture: %s\n", handle.ConsolePath())
	}
	fmt.Printf("Control socket: %s\n", ctl.SocketPath())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	exitReason := "normal"
	select {
	case <-sig:
		exitReason = "signal"
	case <-stopRequested:
		exitReason = "requested"
	case <-manager.WaitForStop(sess.ID):
		exitReason = "vm-exit"
	}
	Debug("Shutting down session %s (%s)", sess.ID, exitReason)

	// Cancellation is soft; stopping the VM closes the guest streams,
	// which is what actually unblocks any forwarding read in progress.
	handle.Stop()
	ctl.Stop()
	if err := manager.Stop(sess.ID); err != nil {
		Debug("VM stop: %v", err)
	}
	handle.Wait()

	consoleOut, logOut := handle.Outcomes()
	if handle.Active() {
		Debug("Forwarding settled: console=%s log=%s", consoleOut.State, logOut.State)
		if consoleOut.Err != nil {
			Debug("Console forwarding error: %v", consoleOut.Err)
		}
	}
	rec.Close()
	ring.Close()

	if sess, err := store.Load(sess.ID); err == nil {
		sess.ExitReason = exitReason
		_ = store.Save(sess)
	}

	fmt.Printf("Session %s stopped (%s)\n", sess.ID, exitReason)
	return nil
}
