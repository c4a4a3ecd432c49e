package sched

import (
	"fmt"
	"os"
	"runtime"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// MinWorkers keeps some overlap between targets even on a single core.
const MinWorkers = 2

// Config mirrors config.yml
type Config struct {
	Workers           int     `yaml:"workers"`             // 0 = one per CPU
	Ordered           bool    `yaml:"ordered"`             // serialize each target through its own lane
	QueueDepth        int     `yaml:"queue_depth"`         // pool submission buffer
	ShutdownTimeoutMS int     `yaml:"shutdown_timeout_ms"` // 5000 (by default)
	TickTimeoutMS     int     `yaml:"tick_timeout_ms"`     // 0 = wait for every target
	TickMS            int     `yaml:"tick_ms"`             // 100 (by default)
	MillisolsPerTick  float64 `yaml:"millisols_per_tick"`  // 0.5 (by default)
	EventBuffer       int     `yaml:"event_buffer"`        // 256 (by default)
	PulseLog          int     `yaml:"pulse_log"`           // 20 (by default)
	LogLevel          string  `yaml:"log_level"`           // info (by default)
	MonitorAddr       string  `yaml:"monitor_addr"`        // empty = no websocket feed
	CSVPath           string  `yaml:"csv_path"`            // empty = no CSV event log
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeoutMS: 5000,
		TickMS:            100,
		MillisolsPerTick:  0.5,
		EventBuffer:       256,
		PulseLog:          20,
		LogLevel:          "info",
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// A missing or malformed file also yields the defaults.
func Load(path string) Config {
	if path == "" {
		return DefaultConfig().normalize()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig().normalize()
	}
	cfg, err := Parse(data)
	if err != nil {
		return DefaultConfig().normalize()
	}
	return cfg
}

// Parse decodes YAML on top of the defaults and applies the sanity clamps.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.normalize(), nil
}

// normalize applies the sanity clamps.
func (c Config) normalize() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Workers < MinWorkers {
		c.Workers = MinWorkers
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = c.Workers * 64
	}
	if c.ShutdownTimeoutMS <= 0 {
		c.ShutdownTimeoutMS = 5000
	}
	if c.TickTimeoutMS < 0 {
		c.TickTimeoutMS = 0
	}
	if c.TickMS <= 0 {
		c.TickMS = 100
	}
	if c.MillisolsPerTick <= 0 {
		c.MillisolsPerTick = 0.5
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	if c.PulseLog < 2 {
		c.PulseLog = 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// TickTimeout is zero when ApplyPulse waits for every target.
func (c Config) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutMS) * time.Millisecond
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}
