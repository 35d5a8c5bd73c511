package core

import (
	"sort"
	"sync"
	"time"
)

// RunID uniquely identifies a due-diligence run.
type RunID string

// Stage represents the current state-machine stage of a run.
type Stage string

const (
	StageInit         Stage = "init"
	StageBatchRunning Stage = "batch_running"
	StageValidating   Stage = "validating"
	StageRetryPending Stage = "retry_pending"
	StageAnalysis     Stage = "analysis"
	StageSynthesis    Stage = "synthesis"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Terminal reports whether the stage admits no further transitions.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// WorkflowState is the run-scoped accumulator threaded through every stage.
// The state machine is its single logical writer between batches, but
// snapshots may be taken from other goroutines at any time, so every mutable
// field lives behind the mutex and is reached through methods.
type WorkflowState struct {
	mu sync.RWMutex

	RunID RunID
	Input TaskInput

	stage      Stage
	results    map[AgentID]*AgentResult
	retryCount int
	errs       []*DomainError

	report   string
	decision string

	CreatedAt   time.Time
	completedAt *time.Time
}

// NewWorkflowState creates the initial state for a run.
func NewWorkflowState(id RunID, input TaskInput) *WorkflowState {
	return &WorkflowState{
		RunID:     id,
		stage:     StageInit,
		Input:     input,
		results:   make(map[AgentID]*AgentResult),
		CreatedAt: time.Now(),
	}
}

// Stage returns the current state-machine stage.
func (s *WorkflowState) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// SetStage records a stage transition.
func (s *WorkflowState) SetStage(to Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = to
}

// RecordResult stores a task's result, overwriting any prior entry for the
// same agent ID. Successful entries from earlier batches are only replaced
// by that same agent's newer result, never removed.
func (s *WorkflowState) RecordResult(r *AgentResult) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.AgentID] = r
}

// Result returns the latest result for one agent, or nil.
func (s *WorkflowState) Result(id AgentID) *AgentResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[id]
}

// Results returns a copy of the latest result per agent.
func (s *WorkflowState) Results() map[AgentID]*AgentResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[AgentID]*AgentResult, len(s.results))
	for id, r := range s.results {
		out[id] = r
	}
	return out
}

// FailedAgents is always derived from results: exactly the IDs whose latest
// result was unsuccessful, sorted for stable output.
func (s *WorkflowState) FailedAgents() []AgentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var failed []AgentID
	for id, r := range s.results {
		if !r.Success {
			failed = append(failed, id)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}

// SuccessCount returns how many of the given agents currently have a
// successful result. With no filter it counts all recorded results.
func (s *WorkflowState) SuccessCount(ids ...AgentID) (success, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(ids) == 0 {
		for _, r := range s.results {
			total++
			if r.Success {
				success++
			}
		}
		return success, total
	}
	for _, id := range ids {
		r, ok := s.results[id]
		if !ok {
			continue
		}
		total++
		if r.Success {
			success++
		}
	}
	return success, total
}

// RetryCount returns how many retry cycles the run has performed.
func (s *WorkflowState) RetryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retryCount
}

// IncrementRetry advances the retry counter and returns the new value.
func (s *WorkflowState) IncrementRetry() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount++
	return s.retryCount
}

// AppendError records a terminal or fatal error. Append-only.
func (s *WorkflowState) AppendError(err *DomainError) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Errors returns the accumulated fatal errors in order.
func (s *WorkflowState) Errors() []*DomainError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*DomainError, len(s.errs))
	copy(out, s.errs)
	return out
}

// SetOutcome records the synthesized report and decision.
func (s *WorkflowState) SetOutcome(report, decision string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
	s.decision = decision
}

// Report returns the synthesized report, empty until synthesis completes.
func (s *WorkflowState) Report() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Decision returns the investment decision, empty until synthesis completes.
func (s *WorkflowState) Decision() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision
}

// MarkCompleted stamps the completion time.
func (s *WorkflowState) MarkCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.completedAt = &now
}

// CompletedAt returns the completion time, or nil while the run is live.
func (s *WorkflowState) CompletedAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedAt
}

// RunSnapshot is the serializable view of a run, used for persistence and
// for surfacing partial state through the job queue.
type RunSnapshot struct {
	RunID       RunID                    `json:"run_id"`
	Stage       Stage                    `json:"stage"`
	Input       TaskInput                `json:"input"`
	Results     map[AgentID]*AgentResult `json:"results"`
	Failed      []AgentID                `json:"failed_agents,omitempty"`
	RetryCount  int                      `json:"retry_count"`
	Errors      []string                 `json:"errors,omitempty"`
	Report      string                   `json:"report,omitempty"`
	Decision    string                   `json:"decision,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

// Snapshot returns a consistent serializable copy of the state. Safe to call
// from any goroutine while the run executes.
func (s *WorkflowState) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[AgentID]*AgentResult, len(s.results))
	var failed []AgentID
	for id, r := range s.results {
		results[id] = r
		if !r.Success {
			failed = append(failed, id)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	errs := make([]string, 0, len(s.errs))
	for _, e := range s.errs {
		errs = append(errs, e.Error())
	}
	return RunSnapshot{
		RunID:       s.RunID,
		Stage:       s.stage,
		Input:       s.Input,
		Results:     results,
		Failed:      failed,
		RetryCount:  s.retryCount,
		Errors:      errs,
		Report:      s.report,
		Decision:    s.decision,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.completedAt,
	}
}
