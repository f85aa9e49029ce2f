// Package config loads computejobd's optional YAML config file,
// trimmed from the teacher's nested Worker/WAL/Snapshot/Metrics
// Config struct in internal/cli/cli.go down to the knobs this
// repo's concurrency substrate actually has: worker count, queue
// capacity, the async enqueue wait budget, and the metrics ring
// window size.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/computejobd/computejobd/internal/logging"
)

// Config is the full set of tunables computejobd accepts from a YAML
// file. Every field has a Default* applied when the file is absent or
// a field is zero-valued, so a missing config file is not an error.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Worker struct {
		Count int `yaml:"count"`
	} `yaml:"worker"`

	Queue struct {
		Capacity      int `yaml:"capacity"`
		EnqueueWaitMs int `yaml:"enqueue_wait_ms"`
	} `yaml:"queue"`

	Metrics struct {
		WindowSize int `yaml:"window_size"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Persistence struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"persistence"`
}

const (
	DefaultPort           = 8080
	DefaultWorkerCount    = 4
	DefaultQueueCapacity  = 100
	DefaultEnqueueWaitMs  = 100
	DefaultMetricsWindow  = 64
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultPersistenceDir = "data/jobs"
)

// Default returns a Config populated entirely with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML config file at path, applying defaults
// to any field left zero-valued. A missing file is not an error: Load
// returns Default() instead, matching spec.md's "config file is
// optional" stance.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Worker.Count == 0 {
		c.Worker.Count = DefaultWorkerCount
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultQueueCapacity
	}
	if c.Queue.EnqueueWaitMs == 0 {
		c.Queue.EnqueueWaitMs = DefaultEnqueueWaitMs
	}
	if c.Metrics.WindowSize == 0 {
		c.Metrics.WindowSize = DefaultMetricsWindow
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = DefaultPersistenceDir
	}
}

// EnqueueWaitBudget converts Queue.EnqueueWaitMs to a time.Duration
// for dispatch.New's asyncWaitBudget parameter.
func (c *Config) EnqueueWaitBudget() time.Duration {
	return time.Duration(c.Queue.EnqueueWaitMs) * time.Millisecond
}

// LogLevel and LogFormat adapt the YAML string fields to
// internal/logging's typed Level/Format.
func (c *Config) LogLevel() logging.Level   { return logging.Level(c.Logging.Level) }
func (c *Config) LogFormat() logging.Format { return logging.Format(c.Logging.Format) }
