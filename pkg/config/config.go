// Package config loads and validates the xenlk harness configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the xenlk configuration.
//
// The lock protocol itself needs no configuration to be correct; everything
// here tunes timing, diagnostics and the test harness.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (XENLK_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Lock tunes the lock protocol timing
	Lock LockConfig `mapstructure:"lock" yaml:"lock"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Soak tunes the randomized soak harness
	Soak SoakConfig `mapstructure:"soak" yaml:"soak"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// LockConfig tunes the lock protocol. The on-disk name format is fixed;
// only timing is configurable.
type LockConfig struct {
	// RetryMax bounds attempts across one acquire.
	// Default: 16
	RetryMax int `mapstructure:"retry_max" validate:"omitempty,min=1" yaml:"retry_max"`

	// MaxBackoff caps the randomized sleep between attempts.
	// Default: 512ms
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"omitempty,gt=0" yaml:"max_backoff"`

	// LeaseTime is the quiet period observed after a forced steal.
	// Default: 30s
	LeaseTime time.Duration `mapstructure:"lease_time" validate:"omitempty,gt=0" yaml:"lease_time"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the host:port the soak command serves /metrics on
	// Default: "127.0.0.1:9090"
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// SoakConfig tunes the randomized soak harness.
type SoakConfig struct {
	// ReadonlyBias is the probability in [0,1] that an iteration takes a
	// reader lock instead of a writer lock.
	// Default: 0.5
	ReadonlyBias float64 `mapstructure:"readonly_bias" validate:"gte=0,lte=1" yaml:"readonly_bias"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	// AutomaticEnv only answers for keys viper already knows; bind every
	// setting so XENLK_* variables apply with or without a config file.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"lock.retry_max", "lock.max_backoff", "lock.lease_time",
		"metrics.enabled", "metrics.listen",
		"soak.readonly_bias",
	} {
		_ = v.BindEnv(key)
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when an
// explicitly requested config file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  xenlk config init --output %s", configPath, configPath)
		}
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

// GetDefaultConfigPath returns the default config file location,
// $XDG_CONFIG_HOME/xenlk/config.yaml.
func GetDefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "xenlk", "config.yaml")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "xenlk", "config.yaml")
}

// setupViper configures viper with environment variables and config file
// settings. Environment variables use the XENLK_ prefix, e.g.
// XENLK_LOGGING_LEVEL=DEBUG or XENLK_LOCK_LEASE_TIME=5s.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("XENLK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(GetDefaultConfigPath()))
	}
}

// readConfigFile reads the configuration file if present. A missing file is
// not an error; defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "512ms" or "30s" into
// time.Duration values.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) || f.Kind() != reflect.String {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}
