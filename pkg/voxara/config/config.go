package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// AgentConfig configures the remote agent.
type AgentConfig struct {
	Bind     string `mapstructure:"bind"`
	Token    string `mapstructure:"token"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RemoteConfig configures the client side of a remote connection.
type RemoteConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

// ScanConfig holds scan defaults applied when flags leave them unset.
type ScanConfig struct {
	Priority string   `mapstructure:"priority"`
	Throttle string   `mapstructure:"throttle"`
	Exclude  []string `mapstructure:"exclude"`
}

// Config represents the application configuration.
type Config struct {
	DefaultPath string        `mapstructure:"default_path"`
	Scan        ScanConfig    `mapstructure:"scan"`
	Agent       AgentConfig   `mapstructure:"agent"`
	Remote      RemoteConfig  `mapstructure:"remote"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/voxara/config.yaml
//   - $HOME/.config/voxara/config.yaml
//
// Environment variables are prefixed with VOXARA_ (e.g. VOXARA_AGENT_BIND).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "voxara"))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "voxara"))

	v.SetEnvPrefix("VOXARA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("default_path", DefaultPath)
	v.SetDefault("scan.priority", "balanced")
	v.SetDefault("scan.throttle", "off")
	v.SetDefault("scan.exclude", DefaultExclusions)
	v.SetDefault("agent.bind", DefaultAgentBind)
	v.SetDefault("agent.max_conns", DefaultAgentMaxConns)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use logging.DefaultLogPath
	v.SetDefault("logging.components", map[string]string{
		"session": "info",
		"engine":  "info",
		"remote":  "info",
		"agent":   "info",
		"watcher": "warn",
	})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "voxara"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "voxara"), nil
}

// DataDir returns the data directory used for the persisted store.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "voxara")
}
