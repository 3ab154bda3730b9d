package scheduler

import (
	"time"

	"github.com/smallbiznis/salesledger/internal/config"
)

// Config controls how often the pipeline runs and how the run lock behaves.
type Config struct {
	RunInterval time.Duration
	// RunTimeout bounds one pipeline run. It never exceeds LockTTL so the lock
	// cannot expire under a live run.
	RunTimeout time.Duration
	LockKey    string
	LockTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		RunTimeout:  time.Hour,
		LockKey:     "salesledger:pipeline:lock",
		LockTTL:     time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.Interval,
		RunTimeout:  cfg.Scheduler.LockTTL,
		LockKey:     cfg.Scheduler.LockKey,
		LockTTL:     cfg.Scheduler.LockTTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.RunTimeout <= 0 || c.RunTimeout > c.LockTTL {
		c.RunTimeout = c.LockTTL
	}
	return c
}
