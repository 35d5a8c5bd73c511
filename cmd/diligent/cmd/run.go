package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/events"
	"github.com/hugo-lorenzo-mato/diligent/internal/report"
	"github.com/hugo-lorenzo-mato/diligent/internal/state"
	"github.com/hugo-lorenzo-mato/diligent/internal/workflow"
)

var (
	runDescription string
	runStage       string
	runContext     string
	runOutput      string
)

var runCmd = &cobra.Command{
	Use:   "run <startup-name>",
	Short: "Run a due-diligence analysis synchronously",
	Long: `Run the full research, analysis, and synthesis pipeline for one
startup and write the resulting report to disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalysis,
}

func init() {
	runCmd.Flags().StringVarP(&runDescription, "description", "d", "",
		"what the startup does (required)")
	runCmd.Flags().StringVar(&runStage, "stage", "",
		"funding stage (e.g. seed, series-a)")
	runCmd.Flags().StringVar(&runContext, "context", "",
		"extra context passed to every agent")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "",
		"report output path (default: <run-id>.md in the state directory)")
	runCmd.Flags().Int("max-concurrency", 0, "max agents running at once")
	runCmd.Flags().Int("max-retries", 0, "retry budget per layer")
	runCmd.Flags().Float64("threshold", 0, "success-rate threshold in [0,1]")

	_ = viper.BindPFlag("workflow.max_concurrency", runCmd.Flags().Lookup("max-concurrency"))
	_ = viper.BindPFlag("workflow.max_retries", runCmd.Flags().Lookup("max-retries"))
	_ = viper.BindPFlag("workflow.success_rate_threshold", runCmd.Flags().Lookup("threshold"))
	_ = runCmd.MarkFlagRequired("description")

	rootCmd.AddCommand(runCmd)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	lock := state.NewRunLock(cfg.State.LockPath)
	if err := os.MkdirAll(filepath.Dir(cfg.State.LockPath), 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := core.TaskInput{
		StartupName:        args[0],
		StartupDescription: runDescription,
		FundingStage:       runStage,
		Context:            runContext,
	}
	runID := core.RunID(uuid.NewString())
	ws := core.NewWorkflowState(runID, input)

	bus := events.New(256)
	defer bus.Close()
	done := make(chan struct{})
	go printProgress(bus, done)

	machine := workflow.NewMachine(eng.policy, eng.runner, eng.synth,
		workflow.WithStateStore(state.NewStore(cfg.State.Dir)),
		workflow.WithEventBus(bus),
		workflow.WithLogger(logger),
	)

	runErr := machine.Run(ctx, ws)
	close(done)

	snap := ws.Snapshot()
	outPath := runOutput
	if outPath == "" {
		outPath = filepath.Join(cfg.State.Dir, string(runID)+".md")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err == nil {
		if werr := os.WriteFile(outPath, []byte(report.BuildMarkdown(snap)), 0o644); werr != nil {
			logger.Warn("failed to write report file", "path", outPath, "error", werr)
		}
	}

	if runErr != nil {
		fmt.Println()
		color.Red("Run failed: %v", runErr)
		if len(snap.Failed) > 0 {
			color.Yellow("Failed agents: %v", snap.Failed)
		}
		return runErr
	}

	fmt.Println()
	color.Green("Run completed")
	fmt.Printf("  run id:   %s\n", runID)
	fmt.Printf("  decision: %s\n", snap.Decision)
	fmt.Printf("  retries:  %d\n", snap.RetryCount)
	fmt.Printf("  report:   %s\n", outPath)
	return nil
}

// printProgress renders bus events to the terminal until done closes.
func printProgress(bus *events.Bus, done <-chan struct{}) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if quiet {
				continue
			}
			switch e := ev.(type) {
			case events.StageChangedEvent:
				color.Cyan("stage: %s -> %s", e.From, e.To)
			case events.TaskEvent:
				switch e.EventType() {
				case events.TypeTaskStarted:
					fmt.Printf("  %s %s\n", color.BlueString("..."), e.Agent)
				case events.TypeTaskCompleted:
					fmt.Printf("  %s %s (%s)\n", color.GreenString("ok "), e.Agent, e.Duration)
				case events.TypeTaskFailed:
					fmt.Printf("  %s %s: %s\n", color.RedString("err"), e.Agent, e.Error)
				}
			}
		}
	}
}
