package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/diligent/internal/api"
	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/events"
	"github.com/hugo-lorenzo-mato/diligent/internal/logging"
	"github.com/hugo-lorenzo-mato/diligent/internal/queue"
	"github.com/hugo-lorenzo-mato/diligent/internal/state"
	"github.com/hugo-lorenzo-mato/diligent/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and run worker",
	Long: `Serve the HTTP API for submitting analyses and run queued jobs in
the background. Jobs survive restarts; finished results are purged after the
configured TTL.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.host/server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	ttl, err := time.ParseDuration(cfg.Queue.ResultTTL)
	if err != nil {
		return err
	}
	pollInterval, err := time.ParseDuration(cfg.Queue.PollInterval)
	if err != nil {
		return err
	}

	store, err := queue.New(cfg.Queue.Path, queue.WithResultTTL(ttl))
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.New(256)
	defer bus.Close()

	srv := api.NewServer(store, bus,
		api.WithLogger(logger.Logger),
		api.WithAPIKeys(cfg.Server.APIKeys),
		api.WithMaxJobsPerKey(cfg.Server.MaxJobsPerKey),
	)

	addr := cfg.Server.Addr()
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := &runWorker{
		store:        store,
		eng:          eng,
		bus:          bus,
		logger:       logger,
		stateDir:     cfg.State.Dir,
		pollInterval: pollInterval,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe(gctx, addr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		worker.loop(gctx)
		return nil
	})
	g.Go(func() error {
		purgeLoop(gctx, store, logger)
		return nil
	})

	return g.Wait()
}

// runWorker drains the job queue one run at a time.
type runWorker struct {
	store        *queue.Store
	eng          *engine
	bus          *events.Bus
	logger       *logging.Logger
	stateDir     string
	pollInterval time.Duration
}

func (w *runWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.store.Dequeue(ctx)
			if err != nil {
				w.logger.Error("dequeue failed", "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.process(ctx, job)
		}
	}
}

// process runs one job to a terminal state, watching for cancel requests and
// publishing partial snapshots while the run is in flight.
func (w *runWorker) process(ctx context.Context, job *core.Job) {
	w.logger.Info("job started", "job_id", job.ID, "startup", job.Input.StartupName)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ws := core.NewWorkflowState(core.RunID(job.ID), job.Input)

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if cancelled, err := w.store.IsCancelled(runCtx, job.ID); err == nil && cancelled {
					w.logger.Info("job cancelled by request", "job_id", job.ID)
					cancel()
					return
				}
				if err := w.store.UpdatePartial(runCtx, job.ID, ws.Snapshot()); err != nil {
					w.logger.Warn("failed to update partial state", "job_id", job.ID, "error", err)
				}
			}
		}
	}()

	machine := workflow.NewMachine(w.eng.policy, w.eng.runner, w.eng.synth,
		workflow.WithStateStore(state.NewStore(w.stateDir)),
		workflow.WithEventBus(w.bus),
		workflow.WithLogger(w.logger),
	)
	runErr := machine.Run(runCtx, ws)
	cancel()
	<-watchDone

	snap := ws.Snapshot()
	if runErr != nil {
		if err := w.store.Fail(ctx, job.ID, runErr.Error(), &snap); err != nil {
			w.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
		}
		w.logger.Warn("job failed", "job_id", job.ID, "error", runErr)
		return
	}
	if err := w.store.Complete(ctx, job.ID, snap); err != nil {
		w.logger.Error("failed to record job completion", "job_id", job.ID, "error", err)
		return
	}
	w.logger.Info("job finished", "job_id", job.ID, "decision", snap.Decision)
}

// purgeLoop removes expired terminal jobs periodically.
func purgeLoop(ctx context.Context, store *queue.Store, logger *logging.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired jobs", "count", n)
			}
		}
	}
}
