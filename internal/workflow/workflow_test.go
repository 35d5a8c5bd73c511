package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// fakeAgent is a scriptable execution collaborator. Each agent ID can be
// given a number of failures to serve before succeeding; a negative count
// fails forever.
type fakeAgent struct {
	mu         sync.Mutex
	failures   map[core.AgentID]int
	calls      map[core.AgentID]int
	delay      time.Duration
	blocked    map[core.AgentID]bool
	running    int
	maxRunning int
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		failures: make(map[core.AgentID]int),
		calls:    make(map[core.AgentID]int),
		blocked:  make(map[core.AgentID]bool),
	}
}

func (f *fakeAgent) failTimes(id core.AgentID, n int) { f.failures[id] = n }
func (f *fakeAgent) failForever(id core.AgentID)      { f.failures[id] = -1 }

// block makes the agent append partial output and then hang until the
// context is cancelled.
func (f *fakeAgent) block(id core.AgentID) { f.blocked[id] = true }

func (f *fakeAgent) callCount(id core.AgentID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeAgent) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}

func (f *fakeAgent) Name() string                 { return "fake" }
func (f *fakeAgent) Ping(_ context.Context) error { return nil }

func (f *fakeAgent) Execute(ctx context.Context, task core.AgentTask, trace *core.ExecutionTrace) (string, error) {
	f.mu.Lock()
	f.calls[task.ID]++
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	shouldFail := f.failures[task.ID] != 0
	if f.failures[task.ID] > 0 {
		f.failures[task.ID]--
	}
	isBlocked := f.blocked[task.ID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	trace.RecordTurn()

	if isBlocked {
		trace.AppendOutput("partial findings for " + string(task.ID))
		<-ctx.Done()
		return "", ctx.Err()
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if shouldFail {
		return "", fmt.Errorf("simulated provider failure")
	}

	out := "findings from " + string(task.ID)
	trace.AppendOutput(out)
	trace.RecordTokens(100, 250)
	return out, nil
}

// latchingAgent signals completion and then fails, mimicking a collaborator
// whose cleanup breaks after the work is already done.
type latchingAgent struct{}

func (latchingAgent) Name() string                 { return "fake" }
func (latchingAgent) Ping(_ context.Context) error { return nil }
func (latchingAgent) Execute(_ context.Context, task core.AgentTask, trace *core.ExecutionTrace) (string, error) {
	trace.AppendOutput("work for " + string(task.ID))
	trace.MarkCompleted("final output for " + string(task.ID))
	return "", fmt.Errorf("session teardown failed")
}

// fakeRegistry resolves every adapter name to one agent.
type fakeRegistry struct {
	agent core.Agent
}

func (r fakeRegistry) Get(_ string) (core.Agent, error) { return r.agent, nil }
func (r fakeRegistry) List() []string                   { return []string{r.agent.Name()} }

// fakeSynth returns a canned report.
type fakeSynth struct {
	err      error
	report   string
	decision string
}

func (s fakeSynth) Synthesize(_ context.Context, _ *core.WorkflowState) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	report, decision := s.report, s.decision
	if report == "" {
		report = "# Report"
	}
	if decision == "" {
		decision = "PROCEED"
	}
	return report, decision, nil
}

func testPolicy() core.RetryPolicy {
	p := core.DefaultRetryPolicy()
	p.TaskTimeout = 2 * time.Second
	p.RunTimeout = 10 * time.Second
	return p
}

func newTestRunner(agent core.Agent, timeout time.Duration) *Runner {
	return NewRunner(fakeRegistry{agent: agent}, StaticAdapters{Default: "fake"}, timeout, nil)
}

func testInput() core.TaskInput {
	return core.TaskInput{
		StartupName:        "acme",
		StartupDescription: "warehouse robotics",
		FundingStage:       "seed",
	}
}
