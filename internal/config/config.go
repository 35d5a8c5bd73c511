// Package config loads and validates application configuration from
// defaults, config files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	State    StateConfig    `mapstructure:"state"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// WorkflowConfig configures batch execution and the validation gate.
type WorkflowConfig struct {
	MaxConcurrency       int     `mapstructure:"max_concurrency"`
	MaxRetries           int     `mapstructure:"max_retries"`
	SuccessRateThreshold float64 `mapstructure:"success_rate_threshold"`
	TaskTimeout          string  `mapstructure:"task_timeout"`
	RunTimeout           string  `mapstructure:"run_timeout"`
}

// Policy converts the workflow section into a retry policy.
func (w WorkflowConfig) Policy() (core.RetryPolicy, error) {
	taskTimeout, err := time.ParseDuration(w.TaskTimeout)
	if err != nil {
		return core.RetryPolicy{}, fmt.Errorf("parsing task_timeout: %w", err)
	}
	runTimeout, err := time.ParseDuration(w.RunTimeout)
	if err != nil {
		return core.RetryPolicy{}, fmt.Errorf("parsing run_timeout: %w", err)
	}
	return core.RetryPolicy{
		MaxRetries:           w.MaxRetries,
		SuccessRateThreshold: w.SuccessRateThreshold,
		MaxConcurrency:       w.MaxConcurrency,
		TaskTimeout:          taskTimeout,
		RunTimeout:           runTimeout,
	}, nil
}

// AgentsConfig configures the available execution adapters.
type AgentsConfig struct {
	Default string            `mapstructure:"default"`
	Models  map[string]string `mapstructure:"models"`
	Claude  AgentConfig       `mapstructure:"claude"`
	OpenAI  AgentConfig       `mapstructure:"openai"`
}

// AgentConfig configures a single execution adapter.
type AgentConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
}

// StateConfig configures run-snapshot persistence.
type StateConfig struct {
	Dir      string `mapstructure:"dir"`
	LockPath string `mapstructure:"lock_path"`
}

// QueueConfig configures the durable job queue.
type QueueConfig struct {
	Path         string `mapstructure:"path"`
	ResultTTL    string `mapstructure:"result_ttl"`
	PollInterval string `mapstructure:"poll_interval"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	APIKeys       []string `mapstructure:"api_keys"`
	MaxJobsPerKey int      `mapstructure:"max_jobs_per_key"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
