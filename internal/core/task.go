package core

import "time"

// AgentID identifies one agent task within a run. It is the merge key for
// retry cycles: a retried task overwrites its prior result by ID.
type AgentID string

// Layer groups agents by pipeline stage.
type Layer string

const (
	LayerResearch  Layer = "research"
	LayerAnalysis  Layer = "analysis"
	LayerSynthesis Layer = "synthesis"
)

// TaskInput is the opaque payload handed to the execution collaborator.
type TaskInput struct {
	StartupName        string `json:"startup_name"`
	StartupDescription string `json:"startup_description"`
	FundingStage       string `json:"funding_stage,omitempty"`
	Context            string `json:"context,omitempty"`
}

// AgentTask is one unit of work submitted to a runner. Immutable once built.
type AgentTask struct {
	ID    AgentID
	Layer Layer
	Model string
	Input TaskInput
}

// NewAgentTask creates a task for the given agent.
func NewAgentTask(id AgentID, layer Layer, input TaskInput) AgentTask {
	return AgentTask{ID: id, Layer: layer, Input: input}
}

// WithModel sets the model override.
func (t AgentTask) WithModel(model string) AgentTask {
	t.Model = model
	return t
}

// AgentResult is the outcome of one task. Exactly one of Output/Err is
// meaningful, gated by Success.
type AgentResult struct {
	AgentID  AgentID       `json:"agent_id"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Err      *DomainError  `json:"error,omitempty"`
	Trace    TraceSnapshot `json:"trace"`
	Duration time.Duration `json:"duration_ms"`
}

// NewSuccessResult builds a successful result.
func NewSuccessResult(id AgentID, output string, trace TraceSnapshot, d time.Duration) *AgentResult {
	return &AgentResult{
		AgentID:  id,
		Success:  true,
		Output:   output,
		Trace:    trace,
		Duration: d,
	}
}

// NewFailureResult builds a failed result. The trace keeps whatever partial
// output had accumulated before the failure.
func NewFailureResult(id AgentID, err *DomainError, trace TraceSnapshot, d time.Duration) *AgentResult {
	return &AgentResult{
		AgentID:  id,
		Success:  false,
		Err:      err,
		Trace:    trace,
		Duration: d,
	}
}
