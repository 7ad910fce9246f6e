package config

import (
	"time"

	"github.com/vietddude/pushwatch/internal/infra/queue"
	redisclient "github.com/vietddude/pushwatch/internal/infra/redis"
	"github.com/vietddude/pushwatch/internal/infra/storage/postgres"
	"github.com/vietddude/pushwatch/internal/infra/vcs"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Branches  []BranchConfig     `yaml:"branches"`
	VCS       vcs.Config         `yaml:"vcs"`
	Queue     queue.Config       `yaml:"queue"`
	Selection SelectionConfig    `yaml:"selection"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BranchConfig holds settings for one monitored branch.
type BranchConfig struct {
	Name          string        `yaml:"name"           mapstructure:"name"`
	PollInterval  time.Duration `yaml:"poll_interval"  mapstructure:"poll_interval"`
	LineageWindow int           `yaml:"lineage_window" mapstructure:"lineage_window"` // 0 = default depth
}

// SelectionConfig holds settings for the test-selection evidence chain and
// the classification engine it feeds.
type SelectionConfig struct {
	ServiceURL     string        `yaml:"service_url"     mapstructure:"service_url"`
	HighConfidence float64       `yaml:"high_confidence" mapstructure:"high_confidence"`
	RetryAttempts  int           `yaml:"retry_attempts"  mapstructure:"retry_attempts"`
	RetryInterval  time.Duration `yaml:"retry_interval"  mapstructure:"retry_interval"`
	RetryTimeout   time.Duration `yaml:"retry_timeout"   mapstructure:"retry_timeout"`

	// Unset means enabled; the zero value of a YAML bool cannot carry a
	// default of true.
	UnknownFromRegressions *bool `yaml:"unknown_from_regressions" mapstructure:"unknown_from_regressions"`
	ConsiderSiblingConfigs *bool `yaml:"consider_sibling_configs" mapstructure:"consider_sibling_configs"`
}

// UnknownDefaults reports whether signal-less consistent failures may
// default to intermittent.
func (c SelectionConfig) UnknownDefaults() bool {
	return c.UnknownFromRegressions == nil || *c.UnknownFromRegressions
}

// Siblings reports whether consistency checks widen with neighboring pushes.
func (c SelectionConfig) Siblings() bool {
	return c.ConsiderSiblingConfigs == nil || *c.ConsiderSiblingConfigs
}
