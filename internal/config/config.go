// Package config loads the ethercap command configuration using viper.
//
// Values come from, in increasing priority: defaults, an optional YAML file,
// ETHERCAP_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	ethercap "github.com/packetcap/go-ethercap"
)

// EnvPrefix prefixes every environment variable, e.g. ETHERCAP_INTERFACE.
const EnvPrefix = "ETHERCAP"

// Config is the full command configuration.
type Config struct {
	Interface   string     `mapstructure:"interface"`
	Output      string     `mapstructure:"output"`
	DevicePath  string     `mapstructure:"device_path"`
	MaxDevices  int        `mapstructure:"max_devices"`
	Promiscuous bool       `mapstructure:"promiscuous"`
	Quiet       bool       `mapstructure:"quiet"`
	Dump        DumpConfig `mapstructure:"dump"`
	Log         LogConfig  `mapstructure:"log"`
}

// DumpConfig controls the console rendering of frames.
type DumpConfig struct {
	PayloadBytes int `mapstructure:"payload_bytes"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// flag names bound to config keys; flags use dashes, keys use the file layout
var flagKeys = map[string]string{
	"interface":     "interface",
	"output":        "output",
	"device-path":   "device_path",
	"max-devices":   "max_devices",
	"promiscuous":   "promiscuous",
	"quiet":         "quiet",
	"payload-bytes": "dump.payload_bytes",
	"log-level":     "log.level",
	"log-file":      "log.file",
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	// every key needs a default so AutomaticEnv can find it when unmarshalling
	v.SetDefault("interface", "")
	v.SetDefault("output", "")
	v.SetDefault("device_path", ethercap.DefaultDevicePath)
	v.SetDefault("max_devices", ethercap.DefaultMaxDevices)
	v.SetDefault("promiscuous", false)
	v.SetDefault("quiet", false)
	v.SetDefault("dump.payload_bytes", 64)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds the known flags of fs to their configuration keys. Flags
// missing from fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional file at path, then decodes and validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the capture cannot start with.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("%w: a network interface name must be specified (--interface or %s_INTERFACE)",
			ethercap.ErrConfiguration, EnvPrefix)
	}
	if c.Dump.PayloadBytes < 0 {
		return fmt.Errorf("%w: payload bytes must not be negative", ethercap.ErrConfiguration)
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("%w: log max size must be positive", ethercap.ErrConfiguration)
	}
	return c.Capture().Validate()
}

// Capture returns the part of c the capture loop consumes.
func (c *Config) Capture() ethercap.Config {
	return ethercap.Config{
		Interface:   c.Interface,
		DevicePath:  c.DevicePath,
		MaxDevices:  c.MaxDevices,
		Promiscuous: c.Promiscuous,
	}
}
