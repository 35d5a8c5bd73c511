package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/diligent/internal/agents"
	"github.com/hugo-lorenzo-mato/diligent/internal/agents/claude"
	"github.com/hugo-lorenzo-mato/diligent/internal/agents/openai"
	"github.com/hugo-lorenzo-mato/diligent/internal/config"
	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/logging"
	"github.com/hugo-lorenzo-mato/diligent/internal/report"
	"github.com/hugo-lorenzo-mato/diligent/internal/workflow"
)

// loadConfig loads and validates configuration, honoring the --config flag
// and any flags bound to the shared viper instance.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *logging.Logger {
	level := cfg.Log.Level
	if quiet {
		level = "error"
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// engine bundles the pieces needed to drive runs.
type engine struct {
	registry *agents.Registry
	runner   *workflow.Runner
	synth    *report.Synthesizer
	policy   core.RetryPolicy
}

// buildEngine wires adapters, runner, and synthesizer from config.
func buildEngine(cfg *config.Config, logger *logging.Logger) (*engine, error) {
	policy, err := cfg.Workflow.Policy()
	if err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	registry := agents.NewRegistry()

	if cfg.Agents.Claude.Enabled {
		apiKey := cfg.Agents.Claude.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("claude adapter enabled but no API key configured (set agents.claude.api_key or ANTHROPIC_API_KEY)")
		}
		registry.Register(claude.New(apiKey,
			claude.WithModel(cfg.Agents.Claude.Model),
			claude.WithMaxTokens(int64(cfg.Agents.Claude.MaxTokens)),
		))
	}

	if cfg.Agents.OpenAI.Enabled {
		apiKey := cfg.Agents.OpenAI.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai adapter enabled but no API key configured (set agents.openai.api_key or OPENAI_API_KEY)")
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Agents.OpenAI.Model),
			openai.WithMaxTokens(cfg.Agents.OpenAI.MaxTokens),
		}
		if cfg.Agents.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Agents.OpenAI.BaseURL))
		}
		registry.Register(openai.New(apiKey, opts...))
	}

	if len(registry.List()) == 0 {
		return nil, fmt.Errorf("no agent adapters enabled")
	}

	defaultModel := cfg.Agents.Claude.Model
	if cfg.Agents.Default == "openai" {
		defaultModel = cfg.Agents.OpenAI.Model
	}
	models := make(map[core.AgentID]string, len(cfg.Agents.Models))
	for id, model := range cfg.Agents.Models {
		models[core.AgentID(id)] = model
	}
	adapters := workflow.StaticAdapters{
		Default:      cfg.Agents.Default,
		DefaultModel: defaultModel,
		Models:       models,
	}

	runner := workflow.NewRunner(registry, adapters, policy.TaskTimeout, logger)
	synth := report.NewSynthesizer(runner, logger)

	return &engine{
		registry: registry,
		runner:   runner,
		synth:    synth,
		policy:   policy,
	}, nil
}
