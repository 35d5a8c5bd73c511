package config

import (
	"fmt"
	"strings"
	"time"
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
	v.validateLog(&cfg.Log)
	v.validateWorkflow(&cfg.Workflow)
	v.validateAgents(&cfg.Agents)
	v.validateQueue(&cfg.Queue)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of debug, info, warn, error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of auto, text, json")
	}
}

func (v *Validator) validateWorkflow(cfg *WorkflowConfig) {
	if cfg.MaxConcurrency < 1 {
		v.addError("workflow.max_concurrency", cfg.MaxConcurrency, "must be at least 1")
	}
	if cfg.MaxRetries < 0 {
		v.addError("workflow.max_retries", cfg.MaxRetries, "must not be negative")
	}
	if cfg.SuccessRateThreshold < 0 || cfg.SuccessRateThreshold > 1 {
		v.addError("workflow.success_rate_threshold", cfg.SuccessRateThreshold, "must be in [0, 1]")
	}
	v.validateDuration("workflow.task_timeout", cfg.TaskTimeout)
	v.validateDuration("workflow.run_timeout", cfg.RunTimeout)
}

func (v *Validator) validateAgents(cfg *AgentsConfig) {
	switch cfg.Default {
	case "claude", "openai":
	default:
		v.addError("agents.default", cfg.Default, "must be one of claude, openai")
	}
	if cfg.Default == "claude" && !cfg.Claude.Enabled {
		v.addError("agents.claude.enabled", cfg.Claude.Enabled, "default adapter must be enabled")
	}
	if cfg.Default == "openai" && !cfg.OpenAI.Enabled {
		v.addError("agents.openai.enabled", cfg.OpenAI.Enabled, "default adapter must be enabled")
	}
	if cfg.Claude.Enabled && cfg.Claude.MaxTokens < 1 {
		v.addError("agents.claude.max_tokens", cfg.Claude.MaxTokens, "must be at least 1")
	}
	if cfg.OpenAI.Enabled && cfg.OpenAI.MaxTokens < 1 {
		v.addError("agents.openai.max_tokens", cfg.OpenAI.MaxTokens, "must be at least 1")
	}
}

func (v *Validator) validateQueue(cfg *QueueConfig) {
	if cfg.Path == "" {
		v.addError("queue.path", cfg.Path, "must not be empty")
	}
	v.validateDuration("queue.result_ttl", cfg.ResultTTL)
	v.validateDuration("queue.poll_interval", cfg.PollInterval)
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be in [1, 65535]")
	}
	if cfg.MaxJobsPerKey < 1 {
		v.addError("server.max_jobs_per_key", cfg.MaxJobsPerKey, "must be at least 1")
	}
}

func (v *Validator) validateDuration(field, value string) {
	if value == "" {
		v.addError(field, value, "must not be empty")
		return
	}
	if d, err := time.ParseDuration(value); err != nil {
		v.addError(field, value, "must be a valid duration (e.g. 2m, 1h)")
	} else if d <= 0 {
		v.addError(field, value, "must be positive")
	}
}
