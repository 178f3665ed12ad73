//go:build darwin

package vm

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Code-Hex/vz/v3"
	"github.com/google/uuid"

	"github.com/vmbridge/vmbridge/internal/session"
)

// validateKernelFile checks if the kernel is a valid ELF or ARM64 Image file
func validateKernelFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open kernel: %w", err)
	}
	defer f.Close()

	header := make([]byte, 64)
	n, err := f.Read(header)
	if err != nil || n < 4 {
		return fmt.Errorf("cannot read kernel header: %w", err)
	}

	// ELF magic: 0x7F 'E' 'L' 'F'
	if header[0] == 0x7F && header[1] == 'E' && header[2] == 'L' && header[3] == 'F' {
		return nil
	}

	// ARM64 Linux Image format has "ARM\x64" at offset 56
	if n >= 60 && header[56] == 'A' && header[57] == 'R' && header[58] == 'M' && header[59] == 0x64 {
		return nil
	}

	// ARM64 Image files may also start with a branch or NOP-like instruction
	if header[3] == 0x14 || header[3] == 0xd5 {
		return nil
	}

	return fmt.Errorf("kernel is not a valid ELF or ARM64 Image file (header: %x)", header[:8])
}

// serialPipe is one host-visible guest output stream: the guest writes into
// a virtio serial port, the host reads the pipe's read end.
type serialPipe struct {
	hostRead   *os.File
	guestWrite *os.File
	hostWrite  *os.File // guest-input direction, unused but required by the attachment
	guestRead  *os.File
}

// newSerialPipe creates the pipe pair and the VZ serial port configuration
// backed by it.
func newSerialPipe() (*serialPipe, *vz.VirtioConsoleDeviceSerialPortConfiguration, error) {
	hostRead, guestWrite, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	guestRead, hostWrite, err := os.Pipe()
	if err != nil {
		_ = hostRead.Close()
		_ = guestWrite.Close()
		return nil, nil, err
	}

	attachment, err := vz.NewFileHandleSerialPortAttachment(guestRead, guestWrite)
	if err != nil {
		_ = hostRead.Close()
		_ = guestWrite.Close()
		_ = guestRead.Close()
		_ = hostWrite.Close()
		return nil, nil, err
	}

	serialConfig, err := vz.NewVirtioConsoleDeviceSerialPortConfiguration(attachment)
	if err != nil {
		_ = hostRead.Close()
		_ = guestWrite.Close()
		_ = guestRead.Close()
		_ = hostWrite.Close()
		return nil, nil, err
	}

	return &serialPipe{
		hostRead:   hostRead,
		guestWrite: guestWrite,
		hostWrite:  hostWrite,
		guestRead:  guestRead,
	}, serialConfig, nil
}

// close tears down both directions; the host read end then yields an error,
// which forwarding treats as the stream ending.
func (p *serialPipe) close() {
	_ = p.guestWrite.Close()
	_ = p.hostRead.Close()
	_ = p.hostWrite.Close()
	_ = p.guestRead.Close()
}

// vzInstance exposes a running VZ virtual machine as an Instance.
type vzInstance struct {
	name    string
	level   DebugLevel
	console *serialPipe
	log     *serialPipe

	mu     sync.Mutex
	closed bool
}

func (i *vzInstance) Name() string           { return i.name }
func (i *vzInstance) DebugLevel() DebugLevel { return i.level }

func (i *vzInstance) ConsoleOutput() (io.ReadCloser, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, fmt.Errorf("console stream unavailable: VM has stopped")
	}
	return i.console.hostRead, nil
}

func (i *vzInstance) LogOutput() (io.ReadCloser, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, fmt.Errorf("log stream unavailable: VM has stopped")
	}
	return i.log.hostRead, nil
}

func (i *vzInstance) close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	i.console.close()
	i.log.close()
}

// VZManager implements Manager using Apple's Virtualization.framework
type VZManager struct {
	sessions  *session.Store
	vms       map[string]*vz.VirtualMachine
	instances map[string]*vzInstance
	mu        sync.RWMutex
}

// NewManager creates a VZ-based VM manager
func NewManager() (Manager, error) {
	store, err := session.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	return &VZManager{
		sessions:  store,
		vms:       make(map[string]*vz.VirtualMachine),
		instances: make(map[string]*vzInstance),
	}, nil
}

// Create builds the VZ virtual machine for def without booting it.
func (m *VZManager) Create(def *Definition, level DebugLevel) (*session.Session, error) {
	id := uuid.New().String()[:8]
	debugLog("Session ID: %s", id)

	if def.Kernel != "" {
		if err := validateKernelFile(def.Kernel); err != nil {
			return nil, fmt.Errorf("kernel validation failed: %w", err)
		}
	}

	bootOpts := []vz.LinuxBootLoaderOption{}
	if def.Params != "" {
		bootOpts = append(bootOpts, vz.WithCommandLine(def.Params))
	}
	if def.Initrd != "" {
		bootOpts = append(bootOpts, vz.WithInitrd(def.Initrd))
	}
	kernelPath := def.Kernel
	if kernelPath == "" {
		kernelPath = def.Bootloader
	}
	bootLoader, err := vz.NewLinuxBootLoader(kernelPath, bootOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create boot loader: %w", err)
	}

	memBytes := def.MemoryBytes()
	cpus := def.CPUCount()
	debugLog("VM config: CPUs=%d, Memory=%d bytes (%s)", cpus, memBytes, def.Memory)

	vmConfig, err := vz.NewVirtualMachineConfiguration(bootLoader, uint(cpus), memBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM config: %w", err)
	}

	// Device configuration order matters for the VZ framework; entropy
	// comes first (required by macOS 12+).
	entropyDevice, err := vz.NewVirtioEntropyDeviceConfiguration()
	if err != nil {
		return nil, fmt.Errorf("failed to create entropy device: %w", err)
	}
	vmConfig.SetEntropyDevicesVirtualMachineConfiguration([]*vz.VirtioEntropyDeviceConfiguration{entropyDevice})

	var blockDevices []vz.StorageDeviceConfiguration
	for _, disk := range def.Disks {
		attachment, err := vz.NewDiskImageStorageDeviceAttachment(disk.Image, !disk.Writable)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk attachment for %s: %w", disk.Image, err)
		}
		blockDevice, err := vz.NewVirtioBlockDeviceConfiguration(attachment)
		if err != nil {
			return nil, fmt.Errorf("failed to create block device for %s: %w", disk.Image, err)
		}
		blockDevices = append(blockDevices, blockDevice)
	}
	vmConfig.SetStorageDevicesVirtualMachineConfiguration(blockDevices)

	// Two serial ports: the guest's primary console and its log channel.
	consolePipe, consoleConfig, err := newSerialPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create console port: %w", err)
	}
	logPipe, logConfig, err := newSerialPipe()
	if err != nil {
		consolePipe.close()
		return nil, fmt.Errorf("failed to create log port: %w", err)
	}
	vmConfig.SetSerialPortsVirtualMachineConfiguration([]*vz.VirtioConsoleDeviceSerialPortConfiguration{
		consoleConfig,
		logConfig,
	})

	natAttachment, err := vz.NewNATNetworkDeviceAttachment()
	if err != nil {
		return nil, fmt.Errorf("failed to create NAT attachment: %w", err)
	}
	networkDevice, err := vz.NewVirtioNetworkDeviceConfiguration(natAttachment)
	if err != nil {
		return nil, fmt.Errorf("failed to create network device: %w", err)
	}
	vmConfig.SetNetworkDevicesVirtualMachineConfiguration([]*vz.VirtioNetworkDeviceConfiguration{networkDevice})

	valid, err := vmConfig.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid VM configuration: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("VM configuration validation failed")
	}

	machine, err := vz.NewVirtualMachine(vmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machine: %w", err)
	}

	inst := &vzInstance{
		name:    def.Name,
		level:   level,
		console: consolePipe,
		log:     logPipe,
	}

	// Close the instance streams when the VM stops so blocked forwarding
	// reads unblock.
	go func() {
		for state := range machine.StateChangedNotify() {
			debugLog("VM state changed: %v", state)
			if state == vz.VirtualMachineStateStopped || state == vz.VirtualMachineStateError {
				inst.close()
			}
		}
	}()

	sess := &session.Session{
		ID:         id,
		VMName:     def.Name,
		DebugLevel: level.String(),
		Status:     "created",
		StartedAt:  time.Now(),
	}

	m.mu.Lock()
	m.vms[id] = machine
	m.instances[id] = inst
	m.mu.Unlock()

	if err := m.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// Start boots the VM
func (m *VZManager) Start(sess *session.Session) (Instance, error) {
	m.mu.RLock()
	machine, ok := m.vms[sess.ID]
	inst := m.instances[sess.ID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("VM not found: %s", sess.ID)
	}

	if err := machine.Start(); err != nil {
		return nil, fmt.Errorf("failed to start VM: %w", err)
	}

	sess.Status = "running"
	if err := m.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return inst, nil
}

// Stop stops a running VM
func (m *VZManager) Stop(id string) error {
	m.mu.Lock()
	machine, ok := m.vms[id]
	inst := m.instances[id]
	delete(m.vms, id)
	delete(m.instances, id)
	m.mu.Unlock()

	if !ok {
		// Not running in this process; just record the stop.
		return m.markStopped(id)
	}

	defer inst.close()

	if machine.State() == vz.VirtualMachineStateStopped || machine.State() == vz.VirtualMachineStateError {
		return m.markStopped(id)
	}

	if machine.CanRequestStop() {
		if _, err := machine.RequestStop(); err != nil {
			if err := machine.Stop(); err != nil {
				// Ignore "already stopped" race condition errors
				if !strings.Contains(err.Error(), "Invalid virtual machine state transition") {
					return fmt.Errorf("failed to stop VM: %w", err)
				}
			}
		}
	} else {
		if err := machine.Stop(); err != nil {
			if !strings.Contains(err.Error(), "Invalid virtual machine state transition") {
				return fmt.Errorf("failed to stop VM: %w", err)
			}
		}
	}

	return m.markStopped(id)
}

func (m *VZManager) markStopped(id string) error {
	sess, err := m.sessions.Load(id)
	if err != nil {
		return fmt.Errorf("session not found: %s", id)
	}
	if sess.Status != "stopped" {
		sess.Status = "stopped"
		now := time.Now()
		sess.StoppedAt = &now
		if err := m.sessions.Save(sess); err != nil {
			return err
		}
	}
	return nil
}

// List returns all sessions
func (m *VZManager) List() ([]*session.Session, error) {
	return m.sessions.List()
}

// WaitForStop returns a channel closed once the VM stops.
func (m *VZManager) WaitForStop(id string) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		m.mu.RLock()
		machine, ok := m.vms[id]
		m.mu.RUnlock()

		if !ok {
			return
		}

		for state := range machine.StateChangedNotify() {
			if state == vz.VirtualMachineStateStopped || state == vz.VirtualMachineStateError {
				return
			}
		}
	}()

	return done
}
