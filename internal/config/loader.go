package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "DILIGENT",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "DILIGENT",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (DILIGENT_*)
// 3. Project config (.diligent.yaml in current directory)
// 4. User config (~/.config/diligent/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".diligent")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "diligent"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Workflow defaults
	l.v.SetDefault("workflow.max_concurrency", 2)
	l.v.SetDefault("workflow.max_retries", 2)
	l.v.SetDefault("workflow.success_rate_threshold", 0.6)
	l.v.SetDefault("workflow.task_timeout", "2m")
	l.v.SetDefault("workflow.run_timeout", "10m")

	// Agent defaults
	l.v.SetDefault("agents.default", "claude")
	l.v.SetDefault("agents.claude.enabled", true)
	l.v.SetDefault("agents.claude.model", "claude-sonnet-4-20250514")
	l.v.SetDefault("agents.claude.max_tokens", 4096)
	l.v.SetDefault("agents.openai.enabled", false)
	l.v.SetDefault("agents.openai.model", "gpt-4o-mini")
	l.v.SetDefault("agents.openai.max_tokens", 4096)

	// State defaults (unified under .diligent/)
	l.v.SetDefault("state.dir", ".diligent/state")
	l.v.SetDefault("state.lock_path", ".diligent/run.lock")

	// Queue defaults
	l.v.SetDefault("queue.path", ".diligent/queue.db")
	l.v.SetDefault("queue.result_ttl", "24h")
	l.v.SetDefault("queue.poll_interval", "2s")

	// Server defaults
	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.max_jobs_per_key", 5)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
