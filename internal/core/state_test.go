package core

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateInput() TaskInput {
	return TaskInput{
		StartupName:        "acme",
		StartupDescription: "warehouse robotics",
	}
}

func successResult(id AgentID) *AgentResult {
	return NewSuccessResult(id, "ok", NewExecutionTrace().Snapshot(), 0)
}

func failureResult(id AgentID) *AgentResult {
	return NewFailureResult(id, ErrAgentExecution(string(id), nil), NewExecutionTrace().Snapshot(), 0)
}

func TestRecordResultOverwritesByAgentID(t *testing.T) {
	state := NewWorkflowState("run-1", stateInput())
	state.RecordResult(failureResult(AgentNewsMonitor))

	res := state.Result(AgentNewsMonitor)
	require.NotNil(t, res)
	assert.False(t, res.Success)

	// A retry's result replaces the failed entry for the same ID.
	state.RecordResult(successResult(AgentNewsMonitor))
	res = state.Result(AgentNewsMonitor)
	require.NotNil(t, res)
	assert.True(t, res.Success)

	_, total := state.SuccessCount()
	assert.Equal(t, 1, total)
}

func TestFailedAgentsDerivedAndSorted(t *testing.T) {
	state := NewWorkflowState("run-2", stateInput())
	state.RecordResult(failureResult(AgentNewsMonitor))
	state.RecordResult(successResult(AgentCompanyProfiler))
	state.RecordResult(failureResult(AgentCompetitorScout))

	assert.Equal(t, []AgentID{AgentCompetitorScout, AgentNewsMonitor}, state.FailedAgents())

	// Flipping a failure to success removes it from the derived set.
	state.RecordResult(successResult(AgentCompetitorScout))
	assert.Equal(t, []AgentID{AgentNewsMonitor}, state.FailedAgents())
}

func TestSuccessCountScopedToGivenAgents(t *testing.T) {
	state := NewWorkflowState("run-3", stateInput())
	state.RecordResult(successResult(AgentCompanyProfiler))
	state.RecordResult(successResult(AgentMarketResearcher))
	state.RecordResult(failureResult(AgentNewsMonitor))
	state.RecordResult(successResult(AgentFinancialAnalyst))

	success, total := state.SuccessCount()
	assert.Equal(t, 3, success)
	assert.Equal(t, 4, total)

	// Scoped to a batch, agents without results don't count toward the total.
	success, total = state.SuccessCount(AgentCompanyProfiler, AgentNewsMonitor, AgentRiskAssessor)
	assert.Equal(t, 1, success)
	assert.Equal(t, 2, total)
}

func TestSnapshotRoundTripsThroughJSON(t *testing.T) {
	state := NewWorkflowState("run-4", stateInput())
	state.SetStage(StageValidating)
	state.IncrementRetry()
	state.RecordResult(successResult(AgentCompanyProfiler))
	state.RecordResult(failureResult(AgentNewsMonitor))
	state.AppendError(ErrMaxRetriesExceeded(2, 0.4))

	snap := state.Snapshot()
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var got RunSnapshot
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, snap.RunID, got.RunID)
	assert.Equal(t, snap.Stage, got.Stage)
	assert.Equal(t, snap.RetryCount, got.RetryCount)
	assert.Equal(t, []AgentID{AgentNewsMonitor}, got.Failed)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], CodeMaxRetriesExceeded)

	failed := got.Results[AgentNewsMonitor]
	require.NotNil(t, failed)
	require.NotNil(t, failed.Err)
	assert.Equal(t, CodeAgentFailed, failed.Err.Code)
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageInit.Terminal())
	assert.False(t, StageBatchRunning.Terminal())
	assert.False(t, StageValidating.Terminal())
}

func TestSnapshotConcurrentWithWriters(t *testing.T) {
	state := NewWorkflowState("run-6", stateInput())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			state.SetStage(StageValidating)
			state.IncrementRetry()
			state.SetOutcome("report", "decision")
			state.RecordResult(successResult(AgentNewsMonitor))
			state.MarkCompleted()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := state.Snapshot()
			if snap.RunID != "run-6" {
				t.Error("snapshot lost run id")
				return
			}
		}
	}()
	wg.Wait()

	snap := state.Snapshot()
	assert.Equal(t, 200, snap.RetryCount)
	assert.Equal(t, StageValidating, snap.Stage)
	require.NotNil(t, snap.CompletedAt)
}

func TestConcurrentRecordResult(t *testing.T) {
	state := NewWorkflowState("run-5", stateInput())
	roster := ResearchRoster()

	var wg sync.WaitGroup
	for _, id := range roster {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(id AgentID) {
				defer wg.Done()
				state.RecordResult(successResult(id))
			}(id)
		}
	}
	wg.Wait()

	success, total := state.SuccessCount()
	assert.Equal(t, len(roster), success)
	assert.Equal(t, len(roster), total)
}
