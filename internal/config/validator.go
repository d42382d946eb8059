package config

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateAgent(&cfg.Agent)
	v.validateDefaults(&cfg.Defaults)
	v.validateBatch(&cfg.Batch)
	v.validateLinks(&cfg.Links)
	v.validateLog(&cfg.Log)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateAgent(cfg *AgentConfig) {
	// The mock binding needs no endpoint; everything else does.
	if !cfg.Mock && cfg.Endpoint == "" {
		v.addError("agent.endpoint", cfg.Endpoint, "required unless agent.mock is enabled")
	}
	if cfg.Timeout <= 0 {
		v.addError("agent.timeout", cfg.Timeout, "must be positive")
	}
}

func (v *Validator) validateDefaults(cfg *DefaultsConfig) {
	if cfg.CharLimit < core.MinCharLimit || cfg.CharLimit > core.MaxCharLimit {
		v.addError("defaults.char_limit", cfg.CharLimit,
			fmt.Sprintf("must be between %d and %d", core.MinCharLimit, core.MaxCharLimit))
	}
	if cfg.MaxRetries < core.MinRetryBudget || cfg.MaxRetries > core.MaxRetryBudget {
		v.addError("defaults.max_retries", cfg.MaxRetries,
			fmt.Sprintf("must be between %d and %d", core.MinRetryBudget, core.MaxRetryBudget))
	}
}

func (v *Validator) validateBatch(cfg *BatchConfig) {
	if cfg.Parallelism < 1 {
		v.addError("batch.parallelism", cfg.Parallelism, "must be at least 1")
	}
}

func (v *Validator) validateLinks(cfg *LinksConfig) {
	if cfg.ProbeTimeout <= 0 {
		v.addError("links.probe_timeout", cfg.ProbeTimeout, "must be positive")
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

func (v *Validator) validateLog(cfg *LogConfig) {
	if !validLogLevels[strings.ToLower(cfg.Level)] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	if !validLogFormats[strings.ToLower(cfg.Format)] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}
