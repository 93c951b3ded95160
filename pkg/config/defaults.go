package config

import (
	"strings"

	"github.com/xenlk/xenlk/pkg/lock"
)

// GetDefaultConfig returns a configuration populated entirely from
// defaults, used when no config file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyLockDefaults(&cfg.Lock)
	applyMetricsDefaults(&cfg.Metrics)
	applySoakDefaults(&cfg.Soak)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyLockDefaults fills protocol timing from the library defaults.
func applyLockDefaults(cfg *LockConfig) {
	if cfg.RetryMax == 0 {
		cfg.RetryMax = lock.DefaultRetries
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = lock.DefaultMaxBackoff
	}
	if cfg.LeaseTime == 0 {
		cfg.LeaseTime = lock.DefaultLeaseTime
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:9090"
	}
}

func applySoakDefaults(cfg *SoakConfig) {
	if cfg.ReadonlyBias == 0 {
		cfg.ReadonlyBias = 0.5
	}
}

// NewLocker builds a lock.Locker from the configured tunables.
func (c *Config) NewLocker() *lock.Locker {
	l := lock.New()
	if c.Lock.RetryMax > 0 {
		l.Retries = c.Lock.RetryMax
	}
	if c.Lock.MaxBackoff > 0 {
		l.MaxBackoff = c.Lock.MaxBackoff
	}
	if c.Lock.LeaseTime > 0 {
		l.LeaseTime = c.Lock.LeaseTime
	}
	return l
}
