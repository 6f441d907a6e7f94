// Package config provides YAML-based configuration loading for signalbox.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level signalbox configuration, loaded from signalbox.yaml.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Publish   PublishConfig   `yaml:"publish"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// StoreConfig holds connection settings for the relational store.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // postgres (default), mysql, sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite only
}

// PublishConfig describes the consumer-facing configuration document.
type PublishConfig struct {
	TargetPath string `yaml:"target_path"`
	// PidFile names a file holding the consumer's PID. After a publish
	// that changed content, the reconciler sends SIGHUP to that PID.
	PidFile string `yaml:"pid_file"`
}

// ReconcileConfig tunes the notification listener.
type ReconcileConfig struct {
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"` // non-postgres change stream
	// RebuildSchedule is an optional 5-field cron expression for
	// scheduled full rebuilds independent of change events.
	RebuildSchedule string `yaml:"rebuild_schedule"`
}

// DashboardConfig controls the status HTTP server.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// NotifyConfig controls desktop notifications for human-targeted messages.
type NotifyConfig struct {
	Command string `yaml:"command"` // shell template, e.g. "notify-send 'signalbox' '{{.Body}}'"
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "postgres"
	}
	if c.Store.Host == "" {
		c.Store.Host = "127.0.0.1"
	}
	if c.Store.Port == 0 {
		switch c.Store.Driver {
		case "mysql":
			c.Store.Port = 3306
		default:
			c.Store.Port = 5432
		}
	}
	if c.Store.Database == "" {
		c.Store.Database = "signalbox"
	}
	if c.Store.User == "" {
		switch c.Store.Driver {
		case "mysql":
			c.Store.User = "root"
		default:
			c.Store.User = "signalbox"
		}
	}
	if c.Reconcile.BackoffInitial <= 0 {
		c.Reconcile.BackoffInitial = 1 * time.Second
	}
	if c.Reconcile.BackoffMax <= 0 {
		c.Reconcile.BackoffMax = 60 * time.Second
	}
	if c.Reconcile.KeepaliveInterval <= 0 {
		c.Reconcile.KeepaliveInterval = 30 * time.Second
	}
	if c.Reconcile.PollInterval <= 0 {
		c.Reconcile.PollInterval = 5 * time.Second
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of postgres, mysql, sqlite", c.Store.Driver))
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		errs = append(errs, "store.path is required for the sqlite driver")
	}
	if c.Publish.TargetPath == "" {
		errs = append(errs, "publish.target_path is required")
	}
	if c.Reconcile.BackoffInitial > c.Reconcile.BackoffMax {
		errs = append(errs, "reconcile.backoff_initial must not exceed reconcile.backoff_max")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
