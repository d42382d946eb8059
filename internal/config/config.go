// Package config loads and validates runtime configuration from defaults,
// config files, environment variables, and CLI flags.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Links    LinksConfig    `mapstructure:"links"`
	Log      LogConfig      `mapstructure:"log"`
	State    StateConfig    `mapstructure:"state"`
	Web      WebConfig      `mapstructure:"web"`
}

// AgentConfig describes the hosted agent service binding.
type AgentConfig struct {
	Endpoint string            `mapstructure:"endpoint"`
	APIKey   string            `mapstructure:"api_key"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Models   map[string]string `mapstructure:"models"`
	Mock     bool              `mapstructure:"mock"`
}

// DefaultsConfig carries the per-question knobs applied when the caller
// doesn't override them.
type DefaultsConfig struct {
	CharLimit  int    `mapstructure:"char_limit"`
	MaxRetries int    `mapstructure:"max_retries"`
	Context    string `mapstructure:"context"`
}

// BatchConfig controls sheet processing.
type BatchConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// LinksConfig controls URL validation.
type LinksConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	Relevance    bool          `mapstructure:"relevance"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StateConfig locates the checkpoint database.
type StateConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// WebConfig controls the optional SSE progress endpoint.
type WebConfig struct {
	Listen string `mapstructure:"listen"`
}
