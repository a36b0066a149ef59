package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for joymirror.
// All configuration is loaded from YAML and can be overridden by environment
// variables. Every field has a default, so the daemon runs with no config
// file at all: the device boundary is contractually flag-free.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Virtual  VirtualConfig  `yaml:"virtual"`
	Rumble   RumbleConfig   `yaml:"rumble"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RegistryConfig bounds the device table.
type RegistryConfig struct {
	// MaxDevices is the fixed capacity of the device registry.
	// Notifications arriving while the table is full are dropped.
	MaxDevices int `yaml:"max_devices"`
}

// VirtualConfig describes the identity of synthesised devices.
//
// The identity signature is deliberately fixed rather than copied from the
// physical controller: a mirror is independently addressable, not an
// impersonation of the original.
type VirtualConfig struct {
	// NamePrefix is combined with the registry slot index to form the
	// device name, e.g. "Mirror Joystick 0".
	NamePrefix string `yaml:"name_prefix"`

	// Vendor, Product and Version form the identification signature
	// reported by every synthesised device.
	Vendor  uint16 `yaml:"vendor"`
	Product uint16 `yaml:"product"`
	Version uint16 `yaml:"version"`
}

// RumbleConfig parameterises the demonstration rumble effect played on the
// physical controller when its primary button is pressed.
type RumbleConfig struct {
	// StrongMagnitude is the heavy-motor magnitude (0..0xFFFF).
	StrongMagnitude uint16 `yaml:"strong_magnitude"`

	// LengthMS is the effect duration in milliseconds.
	LengthMS uint16 `yaml:"length_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is not an error: the daemon must start with defaults when
// no configuration has been provided.
//
// Environment variables follow the pattern: JOYMIRROR_SECTION_KEY
// For example: JOYMIRROR_LOG_LEVEL, JOYMIRROR_MAX_DEVICES
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parsing config file: %w", unmarshalErr)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config reproducing the daemon's historical
// behaviour: ten device slots, the fixed identity signature and a
// half-second rumble at half magnitude.
func defaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			MaxDevices: 10,
		},
		Virtual: VirtualConfig{
			NamePrefix: "Mirror Joystick",
			Vendor:     0x776C,
			Product:    0x6A73,
			Version:    0x0123,
		},
		Rumble: RumbleConfig{
			StrongMagnitude: 0x8000,
			LengthMS:        500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern:
// JOYMIRROR_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JOYMIRROR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JOYMIRROR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("JOYMIRROR_MAX_DEVICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Registry.MaxDevices = n
		}
	}
	if v := os.Getenv("JOYMIRROR_NAME_PREFIX"); v != "" {
		cfg.Virtual.NamePrefix = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Registry.MaxDevices < 1 || c.Registry.MaxDevices > 64 {
		errs = append(errs, "registry.max_devices must be between 1 and 64")
	}

	if c.Virtual.NamePrefix == "" {
		errs = append(errs, "virtual.name_prefix is required")
	}

	if c.Rumble.LengthMS == 0 {
		errs = append(errs, "rumble.length_ms must be greater than 0")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
