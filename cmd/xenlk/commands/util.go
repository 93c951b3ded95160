package commands

import (
	"fmt"
	"os"

	"github.com/xenlk/xenlk/internal/logger"
	"github.com/xenlk/xenlk/pkg/config"
	"github.com/xenlk/xenlk/pkg/lock"
	"github.com/xenlk/xenlk/pkg/metrics"
	"github.com/xenlk/xenlk/pkg/metrics/prometheus"
)

// setup loads configuration, initializes the logger and builds a Locker
// from the configured tunables. Every lock-touching command starts here.
func setup() (*config.Config, *lock.Locker, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}

	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	l := cfg.NewLocker()
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		l.Metrics = prometheus.NewLockMetrics()
	}
	return cfg, l, nil
}

// defaultOwner returns the zero-padded pid used when no owner id is given,
// matching what the harness commands have always written into lock names.
func defaultOwner() string {
	return fmt.Sprintf("%08d", os.Getpid())
}

// resolveOwner applies the pid default to an --owner flag value.
func resolveOwner(owner string) string {
	if owner == "" {
		return defaultOwner()
	}
	return owner
}
