package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long:  "Create .diligent.yaml in the current directory with the default configuration.",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	const path = ".diligent.yaml"

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	scaffold := map[string]interface{}{
		"log": map[string]interface{}{
			"level":  "info",
			"format": "auto",
		},
		"workflow": map[string]interface{}{
			"max_concurrency":        2,
			"max_retries":            2,
			"success_rate_threshold": 0.6,
			"task_timeout":           "2m",
			"run_timeout":            "10m",
		},
		"agents": map[string]interface{}{
			"default": "claude",
			"claude": map[string]interface{}{
				"enabled":    true,
				"model":      "claude-sonnet-4-20250514",
				"max_tokens": 4096,
			},
			"openai": map[string]interface{}{
				"enabled":    false,
				"model":      "gpt-4o-mini",
				"max_tokens": 4096,
			},
		},
		"state": map[string]interface{}{
			"dir":       ".diligent/state",
			"lock_path": ".diligent/run.lock",
		},
		"queue": map[string]interface{}{
			"path":          ".diligent/queue.db",
			"result_ttl":    "24h",
			"poll_interval": "2s",
		},
		"server": map[string]interface{}{
			"host":             "127.0.0.1",
			"port":             8080,
			"max_jobs_per_key": 5,
		},
	}

	data, err := yaml.Marshal(scaffold)
	if err != nil {
		return fmt.Errorf("marshaling config scaffold: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	color.Green("wrote %s", path)
	fmt.Println("Set ANTHROPIC_API_KEY (or agents.claude.api_key) before running analyses.")
	return nil
}
