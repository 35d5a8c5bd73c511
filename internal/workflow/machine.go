package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/events"
	"github.com/hugo-lorenzo-mato/diligent/internal/logging"
)

// Machine sequences the run through its stages, owning every terminal-state
// decision. Stages never overlap: the machine is sequential, and all
// concurrency lives inside a batch.
type Machine struct {
	policy core.RetryPolicy
	fanout *FanOut
	gate   Gate
	router Router
	synth  core.Synthesizer
	store  core.StateStore
	bus    *events.Bus
	logger *logging.Logger
}

// MachineOption configures the machine.
type MachineOption func(*Machine)

// WithStateStore enables snapshot persistence between stages.
func WithStateStore(store core.StateStore) MachineOption {
	return func(m *Machine) { m.store = store }
}

// WithEventBus enables lifecycle event publication.
func WithEventBus(bus *events.Bus) MachineOption {
	return func(m *Machine) { m.bus = bus }
}

// WithLogger sets the machine logger.
func WithLogger(logger *logging.Logger) MachineOption {
	return func(m *Machine) { m.logger = logger }
}

// NewMachine creates a state machine for the given policy. The runner
// executes individual tasks; the synthesizer is the downstream collaborator
// invoked once validation gates the run through.
func NewMachine(policy core.RetryPolicy, runner *Runner, synth core.Synthesizer, opts ...MachineOption) *Machine {
	m := &Machine{
		policy: policy,
		gate:   Gate{Threshold: policy.SuccessRateThreshold, MaxRetries: policy.MaxRetries},
		router: Router{MaxRetries: policy.MaxRetries},
		synth:  synth,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.fanout = NewFanOut(runner, policy.MaxConcurrency, m.bus, m.logger)
	return m
}

// Run drives one due-diligence run to a terminal stage. The returned error
// is nil on StageDone; on StageFailed it is the caller-visible failure
// reason, already appended to the state's error sequence together with the
// final success rate and failed-agent set.
func (m *Machine) Run(ctx context.Context, state *core.WorkflowState) error {
	if err := m.policy.Validate(); err != nil {
		return m.fail(state, err)
	}

	if m.policy.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.policy.RunTimeout)
		defer cancel()
	}

	m.logger.Info("run started",
		"run_id", state.RunID,
		"startup", state.Input.StartupName,
		"max_concurrency", m.policy.MaxConcurrency,
		"threshold", m.policy.SuccessRateThreshold,
	)

	// Research layer: fan out, validate, retry the failed subset.
	if err := m.runGated(ctx, state, core.ResearchRoster(), core.LayerResearch); err != nil {
		return m.fail(state, err)
	}
	m.save(state)

	// Analysis layer runs through the same machinery once research holds.
	m.transition(state, core.StageAnalysis)
	if err := m.runGated(ctx, state, core.AnalysisRoster(), core.LayerAnalysis); err != nil {
		return m.fail(state, err)
	}
	m.save(state)

	m.transition(state, core.StageSynthesis)
	report, decision, err := m.synth.Synthesize(ctx, state)
	if err != nil {
		var domErr *core.DomainError
		if !errors.As(err, &domErr) {
			err = core.ErrCollaboratorUnavailable("synthesizer", err)
		}
		return m.fail(state, err)
	}
	state.SetOutcome(report, decision)

	m.transition(state, core.StageDone)
	state.MarkCompleted()
	m.save(state)

	rate := m.overallRate(state)
	m.publish(events.NewRunCompletedEvent(state.RunID, rate))
	m.logger.Info("run completed",
		"run_id", state.RunID,
		"success_rate", rate,
		"retries", state.RetryCount(),
		"duration", time.Since(state.CreatedAt),
	)
	return nil
}

// runGated executes one layer's batch loop: BATCH_RUNNING → VALIDATING →
// {RETRY_PENDING → BATCH_RUNNING | proceed | fail}. Only the first batch of
// a layer may contain tasks outside the failed set.
func (m *Machine) runGated(ctx context.Context, state *core.WorkflowState, roster []core.AgentID, layer core.Layer) error {
	batch := core.BuildTasks(roster, layer, state.Input)

	for {
		m.transition(state, core.StageBatchRunning)
		if err := m.fanout.Run(ctx, state, batch); err != nil {
			return err
		}

		m.transition(state, core.StageValidating)
		decision, rate, err := m.gate.Evaluate(state, taskIDs(batch))
		if err != nil {
			return err
		}

		m.logger.Info("batch validated",
			"run_id", state.RunID,
			"layer", layer,
			"decision", decision,
			"success_rate", rate,
			"retry_count", state.RetryCount(),
		)

		switch decision {
		case DecisionProceed:
			return nil

		case DecisionRetry:
			m.transition(state, core.StageRetryPending)
			next, err := m.router.NextBatch(state, batch)
			if err != nil {
				return err
			}
			m.logger.Info("retrying failed agents",
				"run_id", state.RunID,
				"agents", len(next),
				"retry_count", state.RetryCount(),
			)
			batch = next

		case DecisionFail:
			return core.ErrMaxRetriesExceeded(state.RetryCount(), rate)
		}
	}
}

// fail is the single path into the terminal FAILED stage.
func (m *Machine) fail(state *core.WorkflowState, err error) error {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) {
		domErr = core.ErrState(core.CodeInvalidState, "run failed").WithCause(err)
	}

	rate := m.overallRate(state)
	failed := state.FailedAgents()
	domErr.WithDetail("success_rate", rate)
	if len(failed) > 0 {
		domErr.WithDetail("failed_agents", failed)
	}

	state.AppendError(domErr)
	m.transition(state, core.StageFailed)
	state.MarkCompleted()
	m.save(state)

	m.publish(events.NewRunFailedEvent(state.RunID, rate, failed, domErr))
	m.logger.Error("run failed",
		"run_id", state.RunID,
		"success_rate", rate,
		"failed_agents", failed,
		"error", domErr,
	)
	return domErr
}

func (m *Machine) transition(state *core.WorkflowState, to core.Stage) {
	from := state.Stage()
	if from == to {
		return
	}
	state.SetStage(to)
	m.publish(events.NewStageChangedEvent(state.RunID, from, to))
	m.logger.Debug("stage transition", "run_id", state.RunID, "from", from, "to", to)
}

// save persists a snapshot between stages. Persistence failures are logged,
// never fatal; the run's source of truth stays in memory.
func (m *Machine) save(state *core.WorkflowState) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(context.Background(), state.Snapshot()); err != nil {
		m.logger.Warn("failed to save run snapshot", "run_id", state.RunID, "error", err)
	}
}

func (m *Machine) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Machine) overallRate(state *core.WorkflowState) float64 {
	success, total := state.SuccessCount()
	if total == 0 {
		return 0
	}
	return float64(success) / float64(total)
}

func taskIDs(batch []core.AgentTask) []core.AgentID {
	ids := make([]core.AgentID, 0, len(batch))
	for _, t := range batch {
		ids = append(ids, t.ID)
	}
	return ids
}
