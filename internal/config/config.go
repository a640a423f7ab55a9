// Package config loads the keyboard-configurator settings from flags, the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Daemon kinds selectable with the "daemon" key.
const (
	DaemonAuto     = "auto"
	DaemonDummy    = "dummy"
	DaemonDirect   = "direct"
	DaemonElevated = "elevated"
)

// EnvPrefix prefixes every environment override, e.g.
// KEYBOARD_CONFIGURATOR_LOG_LEVEL=debug.
const EnvPrefix = "KEYBOARD_CONFIGURATOR"

// RelPath is the config file location below the XDG config home.
const RelPath = "keyboard-configurator/config.yaml"

// Config holds every setting.
type Config struct {
	Daemon          string        `mapstructure:"daemon" yaml:"daemon" json:"daemon"`
	DummyBoards     []string      `mapstructure:"dummy_boards" yaml:"dummy_boards" json:"dummy_boards"`
	ElevateCommand  []string      `mapstructure:"elevate_command" yaml:"elevate_command" json:"elevate_command"`
	DaemonPath      string        `mapstructure:"daemon_path" yaml:"daemon_path" json:"daemon_path"`
	LayoutDir       string        `mapstructure:"layout_dir" yaml:"layout_dir" json:"layout_dir"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"-" json:"refresh_interval"`
	Listen          string        `mapstructure:"listen" yaml:"listen" json:"listen"`

	// Path is the file the settings were read from, empty when none was.
	Path string `mapstructure:"-" yaml:"-" json:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	daemonPath, err := os.Executable()
	if err != nil {
		daemonPath = ""
	}
	return Config{
		Daemon:          DaemonAuto,
		DummyBoards:     []string{},
		ElevateCommand:  []string{"pkexec"},
		DaemonPath:      daemonPath,
		LogLevel:        "info",
		RefreshInterval: time.Second,
		Listen:          "127.0.0.1:8076",
	}
}

// SetDefaults registers the built-in settings and the environment prefix on
// v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("daemon", d.Daemon)
	v.SetDefault("dummy_boards", d.DummyBoards)
	v.SetDefault("elevate_command", d.ElevateCommand)
	v.SetDefault("daemon_path", d.DaemonPath)
	v.SetDefault("layout_dir", d.LayoutDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("refresh_interval", d.RefreshInterval)
	v.SetDefault("listen", d.Listen)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// Load reads settings into a Config. With an explicit path the file must
// exist; otherwise the XDG config file is used when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path == "" {
		if found, err := xdg.SearchConfigFile(RelPath); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	switch c.Daemon {
	case DaemonAuto, DaemonDummy, DaemonDirect, DaemonElevated:
	default:
		return fmt.Errorf("config: unknown daemon kind %q", c.Daemon)
	}
	if c.Daemon == DaemonElevated && len(c.ElevateCommand) == 0 {
		return errors.New("config: elevate_command is empty")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("config: refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	return nil
}

// MarshalYAML renders c the way a config file spells it, with the refresh
// interval as a duration string.
func (c Config) MarshalYAML() (interface{}, error) {
	type Fields Config
	return struct {
		Fields          `yaml:",inline"`
		RefreshInterval string `yaml:"refresh_interval"`
	}{Fields(c), c.RefreshInterval.String()}, nil
}

// DefaultPath returns the XDG config file path, creating its directory.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(RelPath)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

// Write stores c as YAML at path. An existing file is kept unless force is
// set.
func Write(c Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
