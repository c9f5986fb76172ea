package scheduler

import (
	"time"

	"github.com/smallbiznis/commission/internal/config"
)

// Config controls the reconcile loop.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.ReconcileEnabled,
		RunInterval: time.Duration(cfg.ReconcileIntervalSeconds) * time.Second,
		JobTimeout:  time.Duration(cfg.ReconcileTimeoutSeconds) * time.Second,
	}.withDefaults()
}
