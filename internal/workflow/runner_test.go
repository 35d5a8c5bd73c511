package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

func TestRunnerSuccessCarriesTraceAndOutput(t *testing.T) {
	agent := newFakeAgent()
	runner := newTestRunner(agent, time.Second)

	task := core.NewAgentTask(core.AgentCompanyProfiler, core.LayerResearch, testInput())
	res := runner.Run(context.Background(), task)

	require.True(t, res.Success)
	assert.Equal(t, "findings from company_profiler", res.Output)
	assert.Equal(t, 1, res.Trace.Turns)
	assert.Equal(t, 100, res.Trace.TokensIn)
	assert.Equal(t, 250, res.Trace.TokensOut)
	assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
}

func TestRunnerTimeoutPreservesPartialOutput(t *testing.T) {
	agent := newFakeAgent()
	agent.block(core.AgentNewsMonitor)

	runner := newTestRunner(agent, 50*time.Millisecond)
	task := core.NewAgentTask(core.AgentNewsMonitor, core.LayerResearch, testInput())

	res := runner.Run(context.Background(), task)

	require.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, core.CodeAgentTimeout, res.Err.Code)
	assert.True(t, res.Err.Retryable)

	// The output streamed before the deadline survives on the trace.
	assert.Equal(t, "partial findings for news_monitor", res.Trace.PartialOutput)
	assert.Equal(t, 1, res.Trace.Turns)
}

func TestRunnerLateFailureAfterCompletionIsSuccess(t *testing.T) {
	runner := newTestRunner(latchingAgent{}, time.Second)
	task := core.NewAgentTask(core.AgentCompanyProfiler, core.LayerResearch, testInput())

	res := runner.Run(context.Background(), task)

	// The collaborator signaled completion before its teardown error; the
	// latched output wins and the result is a success.
	require.True(t, res.Success)
	assert.Equal(t, "final output for company_profiler", res.Output)
	assert.Nil(t, res.Err)
}

func TestRunnerWrapsPlainExecutionErrors(t *testing.T) {
	agent := newFakeAgent()
	agent.failForever(core.AgentRiskAssessor)

	runner := newTestRunner(agent, time.Second)
	task := core.NewAgentTask(core.AgentRiskAssessor, core.LayerAnalysis, testInput())

	res := runner.Run(context.Background(), task)
	require.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, core.CodeAgentFailed, res.Err.Code)
	assert.Equal(t, core.ErrCatExecution, res.Err.Category)
	assert.True(t, res.Err.Retryable)
}

func TestRunnerUnknownAdapterFailsTask(t *testing.T) {
	registry := errRegistry{err: fmt.Errorf("no adapter registered")}
	runner := NewRunner(registry, StaticAdapters{Default: "missing"}, time.Second, nil)

	task := core.NewAgentTask(core.AgentCompanyProfiler, core.LayerResearch, testInput())
	res := runner.Run(context.Background(), task)

	require.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, core.ErrCatCollaborator, res.Err.Category)
}

func TestRunnerAppliesModelOverride(t *testing.T) {
	agent := &modelCapture{}
	adapters := StaticAdapters{
		Default:      "fake",
		DefaultModel: "base-model",
		Models:       map[core.AgentID]string{core.AgentTechEvaluator: "deep-model"},
	}
	runner := NewRunner(fakeRegistry{agent: agent}, adapters, time.Second, nil)

	task := core.NewAgentTask(core.AgentTechEvaluator, core.LayerAnalysis, testInput())
	res := runner.Run(context.Background(), task)
	require.True(t, res.Success)
	assert.Equal(t, "deep-model", agent.model)

	task = core.NewAgentTask(core.AgentRiskAssessor, core.LayerAnalysis, testInput())
	res = runner.Run(context.Background(), task)
	require.True(t, res.Success)
	assert.Equal(t, "base-model", agent.model)
}

type errRegistry struct {
	err error
}

func (r errRegistry) Get(_ string) (core.Agent, error) { return nil, r.err }
func (r errRegistry) List() []string                   { return nil }

type modelCapture struct {
	model string
}

func (m *modelCapture) Name() string                 { return "fake" }
func (m *modelCapture) Ping(_ context.Context) error { return nil }
func (m *modelCapture) Execute(_ context.Context, task core.AgentTask, trace *core.ExecutionTrace) (string, error) {
	m.model = task.Model
	trace.MarkCompleted("done")
	return "done", nil
}
