package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome points config loading at a throwaway home directory.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.DebugLevel)
	assert.Equal(t, filepath.Join(home, ".vmbridge", "logs"), cfg.LogDir)
	assert.Equal(t, filepath.Join(home, ".vmbridge", "vm.json"), cfg.VMConfig)
	assert.Equal(t, 2000, cfg.LogLines)
	assert.Empty(t, cfg.Ports)
}

func TestLoadFromFile(t *testing.T) {
	home := isolateHome(t)

	configDir := filepath.Join(home, ".vmbridge")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	content := `debug_level: partial
log_dir: ~/captures
vm_config: /etc/vmbridge/dev.json
log_lines: 500
ports:
  - 8080
  - 443
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "partial", cfg.DebugLevel)
	assert.Equal(t, filepath.Join(home, "captures"), cfg.LogDir, "leading ~ expands to home")
	assert.Equal(t, "/etc/vmbridge/dev.json", cfg.VMConfig)
	assert.Equal(t, 500, cfg.LogLines)
	assert.Equal(t, []int{8080, 443}, cfg.Ports)
}

func TestLoadRejectsBadDebugLevel(t *testing.T) {
	home := isolateHome(t)

	configDir := filepath.Join(home, ".vmbridge")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("debug_level: verbose\n"), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "invalid debug_level")
}
