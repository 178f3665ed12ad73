package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/vmbridge/vmbridge/internal/vm"
)

// Config represents the vmbridge configuration
type Config struct {
	DebugLevel string `mapstructure:"debug_level"` // none | partial | full
	LogDir     string `mapstructure:"log_dir"`     // console capture files
	VMConfig   string `mapstructure:"vm_config"`   // VM definition JSON path
	LogLines   int    `mapstructure:"log_lines"`   // guest log ring capacity
	Ports      []int  `mapstructure:"ports"`       // ports enabled at session start
}

// Load loads the configuration from ~/.vmbridge/config.yaml or returns defaults
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(home, ".vmbridge")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	setDefaults()

	// Try to read config file, but don't fail if it doesn't exist
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.VMConfig = expandPath(cfg.VMConfig)

	if _, err := vm.ParseDebugLevel(cfg.DebugLevel); err != nil {
		return nil, fmt.Errorf("invalid debug_level: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug_level", "full")
	viper.SetDefault("log_dir", "~/.vmbridge/logs")
	viper.SetDefault("vm_config", "~/.vmbridge/vm.json")
	viper.SetDefault("log_lines", 2000)
	viper.SetDefault("ports", []int{})
}

// expandPath expands a leading ~ to the user's home directory
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}
