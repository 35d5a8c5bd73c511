package core

import (
	"context"
	"time"
)

// Agent defines the contract for the agent-execution collaborator. An
// implementation must honor the context deadline and report progress and
// partial output through the trace as it runs, so that a timeout or
// cancellation still leaves evidence of progress behind. When the provider
// signals logical completion the adapter latches it with trace.MarkCompleted
// before any cleanup that might still fail.
type Agent interface {
	// Name returns the adapter identifier (e.g. "claude", "openai").
	Name() string

	// Ping checks that the backing provider is reachable and authenticated.
	Ping(ctx context.Context) error

	// Execute runs one task to completion and returns its output.
	Execute(ctx context.Context, task AgentTask, trace *ExecutionTrace) (string, error)
}

// AgentRegistry resolves agent adapters by name.
type AgentRegistry interface {
	Get(name string) (Agent, error)
	List() []string
}

// JobID identifies a queued run.
type JobID string

// JobState is the lifecycle state of a queued run.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobFinished  JobState = "finished"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Job is the queue's view of one submitted run.
type Job struct {
	ID           JobID        `json:"job_id"`
	State        JobState     `json:"state"`
	Input        TaskInput    `json:"input"`
	APIKey       string       `json:"-"`
	PartialState *RunSnapshot `json:"partial_state,omitempty"`
	Error        string       `json:"error,omitempty"`
	EnqueuedAt   time.Time    `json:"enqueued_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}

// JobQueue is the durable-submission collaborator. Results persist with a
// configurable TTL; the queue's job-level timeout surfaces to the
// orchestrator as a cancellation trigger.
type JobQueue interface {
	Submit(ctx context.Context, input TaskInput, apiKey string) (JobID, error)
	Poll(ctx context.Context, id JobID) (*Job, error)
	Cancel(ctx context.Context, id JobID) error
}

// StateStore persists run snapshots between stages.
type StateStore interface {
	Save(ctx context.Context, snap RunSnapshot) error
	Load(ctx context.Context, id RunID) (*RunSnapshot, error)
}

// Synthesizer is the downstream collaborator that turns accumulated results
// into the final report and investment decision.
type Synthesizer interface {
	Synthesize(ctx context.Context, state *WorkflowState) (report, decision string, err error)
}
