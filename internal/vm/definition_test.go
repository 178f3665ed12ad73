package vm

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vm.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefinition(t *testing.T) {
	diskImage := filepath.Join(t.TempDir(), "rootfs.img")
	require.NoError(t, os.WriteFile(diskImage, []byte("disk"), 0644))

	path := writeDefinition(t, `{
		"name": "dev",
		"kernel": "/boot/Image",
		"params": "console=hvc0 root=/dev/vda",
		"disks": [{"image": "`+diskImage+`", "writable": true}],
		"cpus": 2,
		"memory": "4GB"
	}`)

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", def.Name)
	assert.Equal(t, "/boot/Image", def.Kernel)
	assert.Equal(t, "console=hvc0 root=/dev/vda", def.Params)
	require.Len(t, def.Disks, 1)
	assert.True(t, def.Disks[0].Writable)
	assert.Equal(t, 2, def.CPUCount())
	assert.Equal(t, uint64(4*1024*1024*1024), def.MemoryBytes())
}

func TestLoadDefinitionErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadDefinition(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorContains(t, err, "failed to read VM definition")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadDefinition(writeDefinition(t, `{"name": `))
		assert.ErrorContains(t, err, "malformed VM definition")
	})

	t.Run("invalid definition", func(t *testing.T) {
		_, err := LoadDefinition(writeDefinition(t, `{"kernel": "/boot/Image"}`))
		assert.ErrorContains(t, err, "name is required")
	})
}

func TestDefinitionValidate(t *testing.T) {
	t.Run("kernel or bootloader required", func(t *testing.T) {
		def := &Definition{Name: "dev"}
		assert.ErrorContains(t, def.Validate(), "either kernel or bootloader")
	})

	t.Run("bootloader alone is enough", func(t *testing.T) {
		def := &Definition{Name: "dev", Bootloader: "/boot/efi"}
		assert.NoError(t, def.Validate())
	})

	t.Run("disk image must exist", func(t *testing.T) {
		def := &Definition{
			Name:   "dev",
			Kernel: "/boot/Image",
			Disks:  []Disk{{Image: filepath.Join(t.TempDir(), "missing.img")}},
		}
		assert.ErrorContains(t, def.Validate(), "missing.img")
	})

	t.Run("disk without image path", func(t *testing.T) {
		def := &Definition{Name: "dev", Kernel: "/boot/Image", Disks: []Disk{{}}}
		assert.ErrorContains(t, def.Validate(), "disk 0 has no image path")
	})
}

func TestDefinitionMemoryBytes(t *testing.T) {
	tests := []struct {
		memory string
		want   uint64
	}{
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"2G", 2 * 1024 * 1024 * 1024},
		{"512MB", 512 * 1024 * 1024},
		{"512M", 512 * 1024 * 1024},
		{"", 8 * 1024 * 1024 * 1024},
		{"lots", 8 * 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.memory, func(t *testing.T) {
			def := &Definition{Memory: tt.memory}
			assert.Equal(t, tt.want, def.MemoryBytes())
		})
	}
}

func TestDefinitionCPUCount(t *testing.T) {
	assert.Equal(t, 4, (&Definition{CPUs: 4}).CPUCount())
	assert.Equal(t, runtime.NumCPU(), (&Definition{}).CPUCount())
}

func TestParseDebugLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    DebugLevel
		wantErr bool
	}{
		{in: "none", want: DebugNone},
		{in: "partial", want: DebugPartial},
		{in: "full", want: DebugFull},
		{in: "", want: DebugFull},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDebugLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
