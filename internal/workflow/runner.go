// Package workflow implements the due-diligence orchestration engine: a
// staged state machine that fans batches of agent tasks out under a
// concurrency bound, validates each batch against a success-rate threshold,
// retries only the failed subset, and gates progress to synthesis.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/logging"
)

// Runner executes one agent task to completion, timeout, or cancellation,
// producing a typed result and updating its trace. Per-task errors are
// absorbed into the result; Run never panics a batch.
type Runner struct {
	registry core.AgentRegistry
	adapters AdapterTable
	timeout  time.Duration
	logger   *logging.Logger
}

// AdapterTable maps an agent ID to the adapter and model that execute it.
type AdapterTable interface {
	Resolve(id core.AgentID) (adapter, model string)
}

// StaticAdapters is an AdapterTable backed by fixed maps with a default.
type StaticAdapters struct {
	Default      string
	DefaultModel string
	Adapters     map[core.AgentID]string
	Models       map[core.AgentID]string
}

// Resolve returns the adapter and model for an agent ID.
func (s StaticAdapters) Resolve(id core.AgentID) (string, string) {
	adapter := s.Default
	if a, ok := s.Adapters[id]; ok && a != "" {
		adapter = a
	}
	model := s.DefaultModel
	if m, ok := s.Models[id]; ok && m != "" {
		model = m
	}
	return adapter, model
}

// NewRunner creates a task runner bound by the per-task timeout.
func NewRunner(registry core.AgentRegistry, adapters AdapterTable, timeout time.Duration, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		registry: registry,
		adapters: adapters,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run executes one task against its execution collaborator, bounded by the
// task timeout. The returned result always carries the trace, including any
// partial output captured before a timeout or cancellation.
func (r *Runner) Run(ctx context.Context, task core.AgentTask) *core.AgentResult {
	trace := core.NewExecutionTrace()
	start := time.Now()

	adapterName, model := r.adapters.Resolve(task.ID)
	if task.Model != "" {
		model = task.Model
	}
	agent, err := r.registry.Get(adapterName)
	if err != nil {
		return core.NewFailureResult(task.ID,
			core.ErrCollaboratorUnavailable(adapterName, err),
			trace.Snapshot(), time.Since(start))
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	output, execErr := agent.Execute(tctx, task.WithModel(model), trace)
	elapsed := time.Since(start)

	if execErr != nil {
		// A failure raised after the collaborator already signaled logical
		// completion must not downgrade the result. The trace latched the
		// first completion signal; the late failure is diagnostic only.
		if latched, ok := trace.Completed(); ok {
			r.logger.Warn("late collaborator failure after completion",
				"agent", task.ID,
				"adapter", adapterName,
				"error", execErr,
			)
			return core.NewSuccessResult(task.ID, latched, trace.Snapshot(), elapsed)
		}

		if errors.Is(execErr, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded) {
			r.logger.Warn("agent timed out",
				"agent", task.ID,
				"timeout", r.timeout,
				"partial_output_len", len(trace.PartialOutput()),
			)
			return core.NewFailureResult(task.ID,
				core.ErrAgentTimeout(string(task.ID), r.timeout.String()),
				trace.Snapshot(), elapsed)
		}

		var domErr *core.DomainError
		if !errors.As(execErr, &domErr) {
			domErr = core.ErrAgentExecution(string(task.ID), execErr)
		}
		r.logger.Warn("agent failed",
			"agent", task.ID,
			"adapter", adapterName,
			"error", execErr,
		)
		return core.NewFailureResult(task.ID, domErr, trace.Snapshot(), elapsed)
	}

	if output == "" {
		output = trace.PartialOutput()
	}
	trace.MarkCompleted(output)

	r.logger.Debug("agent completed",
		"agent", task.ID,
		"duration_ms", elapsed.Milliseconds(),
		"tokens_out", trace.Snapshot().TokensOut,
	)
	return core.NewSuccessResult(task.ID, output, trace.Snapshot(), elapsed)
}
