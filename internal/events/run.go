package events

import (
	"time"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Event type constants.
const (
	TypeStageChanged  = "stage_changed"
	TypeTaskStarted   = "task_started"
	TypeTaskCompleted = "task_completed"
	TypeTaskFailed    = "task_failed"
	TypeRunCompleted  = "run_completed"
	TypeRunFailed     = "run_failed"
)

// StageChangedEvent signals a state-machine transition.
type StageChangedEvent struct {
	BaseEvent
	From core.Stage `json:"from"`
	To   core.Stage `json:"to"`
}

// NewStageChangedEvent creates a stage transition event.
func NewStageChangedEvent(runID core.RunID, from, to core.Stage) StageChangedEvent {
	return StageChangedEvent{
		BaseEvent: NewBaseEvent(TypeStageChanged, string(runID)),
		From:      from,
		To:        to,
	}
}

// TaskEvent signals task lifecycle changes within a batch.
type TaskEvent struct {
	BaseEvent
	Agent    core.AgentID  `json:"agent"`
	Duration time.Duration `json:"duration_ms,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// NewTaskStartedEvent creates a task start event.
func NewTaskStartedEvent(runID core.RunID, agent core.AgentID) TaskEvent {
	return TaskEvent{
		BaseEvent: NewBaseEvent(TypeTaskStarted, string(runID)),
		Agent:     agent,
	}
}

// NewTaskCompletedEvent creates a task success event.
func NewTaskCompletedEvent(runID core.RunID, agent core.AgentID, d time.Duration) TaskEvent {
	return TaskEvent{
		BaseEvent: NewBaseEvent(TypeTaskCompleted, string(runID)),
		Agent:     agent,
		Duration:  d,
	}
}

// NewTaskFailedEvent creates a task failure event.
func NewTaskFailedEvent(runID core.RunID, agent core.AgentID, err error, d time.Duration) TaskEvent {
	ev := TaskEvent{
		BaseEvent: NewBaseEvent(TypeTaskFailed, string(runID)),
		Agent:     agent,
		Duration:  d,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// RunFinishedEvent signals a terminal stage.
type RunFinishedEvent struct {
	BaseEvent
	Stage       core.Stage     `json:"stage"`
	SuccessRate float64        `json:"success_rate"`
	Failed      []core.AgentID `json:"failed_agents,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// NewRunCompletedEvent creates a successful terminal event.
func NewRunCompletedEvent(runID core.RunID, successRate float64) RunFinishedEvent {
	return RunFinishedEvent{
		BaseEvent:   NewBaseEvent(TypeRunCompleted, string(runID)),
		Stage:       core.StageDone,
		SuccessRate: successRate,
	}
}

// NewRunFailedEvent creates a failed terminal event.
func NewRunFailedEvent(runID core.RunID, successRate float64, failed []core.AgentID, err error) RunFinishedEvent {
	ev := RunFinishedEvent{
		BaseEvent:   NewBaseEvent(TypeRunFailed, string(runID)),
		Stage:       core.StageFailed,
		SuccessRate: successRate,
		Failed:      failed,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
