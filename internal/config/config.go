package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/spf13/viper"
)

// Config represents the complete tickloop configuration
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Loop     LoopConfig     `mapstructure:"loop"`
	LockTest LockTestConfig `mapstructure:"locktest"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level, using the syslog keywords: "emerg", "alert",
	// "crit", "err", "warning", "notice", "info", "debug", "trace", or
	// "disabled" (default: "info")
	Level string `mapstructure:"level"`
	// Timestamps includes a time field in each log line (default: true)
	Timestamps bool `mapstructure:"timestamps"`
}

// LoopConfig controls the scheduler
type LoopConfig struct {
	// Workers bounds the goroutines used for BoundedAsync work, 0 uses
	// GOMAXPROCS (default: 0)
	Workers int `mapstructure:"workers"`
	// TickIntervalMs is the minimum time between ticks, 0 ticks continuously
	// (default: 0)
	TickIntervalMs int `mapstructure:"tick_interval_ms"`
	// Metrics enables tick latency and fault counters (default: true)
	Metrics bool `mapstructure:"metrics"`
	// FaultLogRates limits logged faults per module, mapping a window
	// duration (e.g. "1s") to the maximum events in that window. An empty
	// map disables the limit (default: {"1s": 5, "1m": 60})
	FaultLogRates map[string]int `mapstructure:"fault_log_rates"`
}

// LockTestConfig controls the lock script runner
type LockTestConfig struct {
	// DefaultSleepMs is the duration of a bare "s" command (default: 1000)
	DefaultSleepMs int `mapstructure:"default_sleep_ms"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Timestamps: true,
		},
		Loop: LoopConfig{
			Workers:        0, // GOMAXPROCS
			TickIntervalMs: 0, // Tick continuously
			Metrics:        true,
			FaultLogRates: map[string]int{
				"1s": 5,
				"1m": 60,
			},
		},
		LockTest: LockTestConfig{
			DefaultSleepMs: 1000,
		},
	}
}

// SetDefaults registers the defaults with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.timestamps", defaults.Logging.Timestamps)

	// Loop defaults
	v.SetDefault("loop.workers", defaults.Loop.Workers)
	v.SetDefault("loop.tick_interval_ms", defaults.Loop.TickIntervalMs)
	v.SetDefault("loop.metrics", defaults.Loop.Metrics)
	v.SetDefault("loop.fault_log_rates", defaults.Loop.FaultLogRates)

	// Lock test defaults
	v.SetDefault("locktest.default_sleep_ms", defaults.LockTest.DefaultSleepMs)
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the directory searched for config.yaml
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tickloop")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tickloop"
	}
	return filepath.Join(home, ".config", "tickloop")
}

// LogLevel returns the parsed log level. It must be valid.
func (c *LoggingConfig) LogLevel() logiface.Level {
	level, _ := parseLevel(c.Level)
	return level
}

// TickInterval returns TickIntervalMs as a duration
func (c *LoopConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// FaultLogRateMap returns the parsed fault log rates. They must be valid.
func (c *LoopConfig) FaultLogRateMap() map[time.Duration]int {
	if len(c.FaultLogRates) == 0 {
		return nil
	}
	rates := make(map[time.Duration]int, len(c.FaultLogRates))
	for k, n := range c.FaultLogRates {
		d, _ := time.ParseDuration(k)
		rates[d] = n
	}
	return rates
}

// DefaultSleep returns DefaultSleepMs as a duration
func (c *LockTestConfig) DefaultSleep() time.Duration {
	return time.Duration(c.DefaultSleepMs) * time.Millisecond
}

var levels = []logiface.Level{
	logiface.LevelDisabled,
	logiface.LevelEmergency,
	logiface.LevelAlert,
	logiface.LevelCritical,
	logiface.LevelError,
	logiface.LevelWarning,
	logiface.LevelNotice,
	logiface.LevelInformational,
	logiface.LevelDebug,
	logiface.LevelTrace,
}

func parseLevel(s string) (logiface.Level, bool) {
	for _, level := range levels {
		if level.String() == s {
			return level, true
		}
	}
	return logiface.LevelDisabled, false
}
