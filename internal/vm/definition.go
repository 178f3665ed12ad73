package vm

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Definition describes the guest image to boot, loaded from a JSON file:
//
//	{
//	  "name": "dev",
//	  "kernel": "/path/to/Image",
//	  "initrd": "/path/to/initrd.img",
//	  "params": "console=hvc0 root=/dev/vda",
//	  "disks": [{"image": "/path/to/rootfs.img", "writable": true}],
//	  "cpus": 4,
//	  "memory": "8GB"
//	}
type Definition struct {
	Name       string `json:"name"`
	Kernel     string `json:"kernel,omitempty"`
	Initrd     string `json:"initrd,omitempty"`
	Bootloader string `json:"bootloader,omitempty"`
	Params     string `json:"params,omitempty"`
	Disks      []Disk `json:"disks,omitempty"`
	CPUs       int    `json:"cpus,omitempty"`
	Memory     string `json:"memory,omitempty"`
}

// Disk is one block device image attached to the guest.
type Disk struct {
	Image    string `json:"image"`
	Writable bool   `json:"writable,omitempty"`
}

// LoadDefinition reads and validates a VM definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read VM definition: %w", err)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("malformed VM definition %s: %w", path, err)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid VM definition %s: %w", path, err)
	}
	return &def, nil
}

// Validate checks the definition is bootable.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.Kernel == "" && d.Bootloader == "" {
		return fmt.Errorf("either kernel or bootloader is required")
	}
	for i, disk := range d.Disks {
		if disk.Image == "" {
			return fmt.Errorf("disk %d has no image path", i)
		}
		if _, err := os.Stat(disk.Image); err != nil {
			return fmt.Errorf("disk image %s: %w", disk.Image, err)
		}
	}
	return nil
}

// MemoryBytes converts the memory string ("8GB", "512MB") to bytes,
// defaulting to 8 GiB when unset or unparseable.
func (d *Definition) MemoryBytes() uint64 {
	var size uint64
	var unit string
	fmt.Sscanf(d.Memory, "%d%s", &size, &unit)

	switch unit {
	case "GB", "G":
		return size * 1024 * 1024 * 1024
	case "MB", "M":
		return size * 1024 * 1024
	default:
		return 8 * 1024 * 1024 * 1024
	}
}

// CPUCount returns the configured CPU count, defaulting to the host's.
func (d *Definition) CPUCount() int {
	if d.CPUs > 0 {
		return d.CPUs
	}
	return runtime.NumCPU()
}
