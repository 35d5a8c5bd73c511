package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/events"
	"github.com/hugo-lorenzo-mato/diligent/internal/logging"
)

// FanOut runs a batch of tasks with a bounded number executing
// simultaneously, recording one result per task regardless of individual
// failures. Failure or timeout of one task never aborts its siblings; only
// run-level cancellation stops admission.
type FanOut struct {
	runner *Runner
	bound  int64
	bus    *events.Bus
	logger *logging.Logger
}

// NewFanOut creates a fan-out executor with concurrency bound k.
func NewFanOut(runner *Runner, k int, bus *events.Bus, logger *logging.Logger) *FanOut {
	if k < 1 {
		k = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FanOut{
		runner: runner,
		bound:  int64(k),
		bus:    bus,
		logger: logger,
	}
}

// Run executes the batch, writing each task's result into the state through
// its synchronized overwrite-by-id operation. Tasks are admitted in batch
// order as slots free up. The returned error is non-nil only for run-level
// cancellation; per-task failures live in the recorded results.
func (f *FanOut) Run(ctx context.Context, state *core.WorkflowState, batch []core.AgentTask) error {
	if len(batch) == 0 {
		return core.ErrValidation(core.CodeEmptyBatch, "batch has no tasks")
	}

	f.logger.Info("executing batch",
		"run_id", state.RunID,
		"tasks", len(batch),
		"max_concurrency", f.bound,
	)

	sem := semaphore.NewWeighted(f.bound)
	g, gctx := errgroup.WithContext(ctx)

	for i, task := range batch {
		// Acquiring in the admission loop keeps batch order: task i+1 cannot
		// start before task i has been handed a slot.
		if err := sem.Acquire(gctx, 1); err != nil {
			f.recordCancelled(state, batch[i:], ctx.Err())
			break
		}

		task := task
		g.Go(func() error {
			defer sem.Release(1)

			f.publish(events.NewTaskStartedEvent(state.RunID, task.ID))
			res := f.runner.Run(gctx, task)
			state.RecordResult(res)

			if res.Success {
				f.publish(events.NewTaskCompletedEvent(state.RunID, task.ID, res.Duration))
			} else {
				f.publish(events.NewTaskFailedEvent(state.RunID, task.ID, res.Err, res.Duration))
			}
			return nil
		})
	}

	// Workers never return errors; Wait is a pure fan-in barrier.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return core.ErrRunCancelled(err.Error()).WithCause(err)
	}
	return nil
}

// recordCancelled gives every unadmitted task a cancellation result so the
// batch still accounts for exactly one result per task.
func (f *FanOut) recordCancelled(state *core.WorkflowState, remaining []core.AgentTask, cause error) {
	reason := "run cancelled"
	if cause != nil {
		reason = cause.Error()
	}
	for _, task := range remaining {
		if state.Result(task.ID) != nil && state.Result(task.ID).Success {
			// Never clobber a prior success with a cancellation entry.
			continue
		}
		trace := core.NewExecutionTrace()
		res := core.NewFailureResult(task.ID, core.ErrRunCancelled(reason), trace.Snapshot(), 0)
		state.RecordResult(res)
		f.publish(events.NewTaskFailedEvent(state.RunID, task.ID, res.Err, 0))
	}
}

func (f *FanOut) publish(ev events.Event) {
	if f.bus != nil {
		f.bus.Publish(ev)
	}
}
