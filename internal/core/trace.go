package core

import (
	"sync"
	"time"
)

// ExecutionTrace is the live diagnostic record for one in-flight task.
// The owning runner writes through the Record* methods while the task runs;
// everyone else reads through Snapshot. The trace stays readable after the
// task is cancelled or times out, so partial progress is never lost.
type ExecutionTrace struct {
	mu            sync.Mutex
	turns         int
	toolCalls     int
	tokensIn      int
	tokensOut     int
	lastActivity  time.Time
	partialOutput string
	startedAt     time.Time

	completed       bool
	completedOutput string
}

// TraceSnapshot is an immutable copy of a trace at a point in time.
type TraceSnapshot struct {
	Turns         int       `json:"turns"`
	ToolCalls     int       `json:"tool_calls"`
	TokensIn      int       `json:"tokens_input"`
	TokensOut     int       `json:"tokens_output"`
	LastActivity  time.Time `json:"last_activity"`
	PartialOutput string    `json:"partial_output,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// NewExecutionTrace creates a trace for a task that is starting now.
func NewExecutionTrace() *ExecutionTrace {
	now := time.Now()
	return &ExecutionTrace{
		lastActivity: now,
		startedAt:    now,
	}
}

// RecordTurn counts one conversation turn and marks activity.
func (t *ExecutionTrace) RecordTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns++
	t.lastActivity = time.Now()
}

// RecordToolCall counts one tool invocation and marks activity.
func (t *ExecutionTrace) RecordToolCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toolCalls++
	t.lastActivity = time.Now()
}

// RecordTokens adds token usage and marks activity.
func (t *ExecutionTrace) RecordTokens(in, out int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if in > 0 {
		t.tokensIn += in
	}
	if out > 0 {
		t.tokensOut += out
	}
	t.lastActivity = time.Now()
}

// AppendOutput accumulates best-effort output. Timeout handling must never
// erase what has been captured here.
func (t *ExecutionTrace) AppendOutput(chunk string) {
	if chunk == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partialOutput += chunk
	t.lastActivity = time.Now()
}

// PartialOutput returns the output captured so far.
func (t *ExecutionTrace) PartialOutput() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partialOutput
}

// LastActivity returns the time of the most recent progress event.
func (t *ExecutionTrace) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

// MarkCompleted latches the first logical-completion signal for the task.
// Execution substrates are known to fail during cleanup after completion;
// the first latched output wins and later signals are ignored, so a late
// failure can never downgrade an already-successful result.
func (t *ExecutionTrace) MarkCompleted(output string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return
	}
	t.completed = true
	if output == "" {
		output = t.partialOutput
	}
	t.completedOutput = output
	t.lastActivity = time.Now()
}

// Completed reports whether logical completion was observed, and the output
// latched at that moment.
func (t *ExecutionTrace) Completed() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedOutput, t.completed
}

// Snapshot returns a consistent copy of the trace.
func (t *ExecutionTrace) Snapshot() TraceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TraceSnapshot{
		Turns:         t.turns,
		ToolCalls:     t.toolCalls,
		TokensIn:      t.tokensIn,
		TokensOut:     t.tokensOut,
		LastActivity:  t.lastActivity,
		PartialOutput: t.partialOutput,
		StartedAt:     t.startedAt,
	}
}
