package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/diligent/internal/config"
	"github.com/hugo-lorenzo-mato/diligent/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, adapters, and host resources",
	Long:  "Verify that configuration is valid and the configured agent adapters are reachable.",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().Bool("ping", false, "ping configured agent providers (makes network calls)")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	fmt.Println("Validating configuration...")
	fmt.Println()

	issues := validateConfiguration()
	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Printf("  ✗ %s\n", issue)
		}
		fmt.Println()
		fmt.Println("Configuration errors must be fixed before running analyses.")
		return fmt.Errorf("configuration check failed")
	}
	fmt.Println("  ✓ configuration valid")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	fmt.Println("Checking agent adapters...")
	fmt.Println()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return fmt.Errorf("adapter check failed")
	}

	doPing, _ := cmd.Flags().GetBool("ping")
	allOk := true
	for _, name := range eng.registry.List() {
		if !doPing {
			fmt.Printf("  ✓ %s configured\n", name)
			continue
		}
		agent, err := eng.registry.Get(name)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		pingErr := agent.Ping(ctx)
		cancel()
		if pingErr != nil {
			fmt.Printf("  ✗ %s unreachable: %v\n", name, pingErr)
			allOk = false
		} else {
			fmt.Printf("  ✓ %s reachable\n", name)
		}
	}
	fmt.Println()

	fmt.Println("Host resources...")
	fmt.Println()
	stats := diagnostics.NewSystemMetricsCollector().Collect()
	fmt.Printf("  cpu:    %s (%d cores, %d threads)\n", stats.CPUModel, stats.CPUCores, stats.CPUThreads)
	fmt.Printf("  memory: %.0f MB used of %.0f MB (%.1f%%)\n", stats.MemUsedMB, stats.MemTotalMB, stats.MemPercent)
	fmt.Printf("  disk:   %.1f GB used of %.1f GB (%.1f%%)\n", stats.DiskUsedGB, stats.DiskTotalGB, stats.DiskPercent)
	fmt.Printf("  load:   %.2f %.2f %.2f\n", stats.LoadAvg1, stats.LoadAvg5, stats.LoadAvg15)
	fmt.Println()

	if !allOk {
		return fmt.Errorf("some adapters are unreachable")
	}
	fmt.Println("All checks passed")
	return nil
}

// validateConfiguration loads and validates config, returning issues.
func validateConfiguration() []string {
	var issues []string

	if _, err := loadConfig(); err != nil {
		if verrs, ok := err.(config.ValidationErrors); ok {
			for _, verr := range verrs {
				issues = append(issues, verr.Error())
			}
		} else {
			issues = append(issues, err.Error())
		}
	}
	return issues
}
