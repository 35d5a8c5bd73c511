package workflow

import (
	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Router builds the narrowed batch for a retry cycle: exactly the tasks
// whose latest result failed, leaving every successful entry untouched.
// It increments the retry counter strictly between batches.
type Router struct {
	// MaxRetries is the hard bound on retry cycles per run.
	MaxRetries int
}

// NextBatch constructs the retry batch from the failed subset of the given
// batch and advances the retry counter. If the increment would exceed the
// bound, no batch is built and the run must fail instead.
func (r Router) NextBatch(state *core.WorkflowState, prev []core.AgentTask) ([]core.AgentTask, error) {
	if state.RetryCount()+1 > r.MaxRetries {
		success, total := batchCounts(state, prev)
		rate := 0.0
		if total > 0 {
			rate = float64(success) / float64(total)
		}
		return nil, core.ErrMaxRetriesExceeded(state.RetryCount(), rate)
	}

	failed := make(map[core.AgentID]bool)
	for _, id := range state.FailedAgents() {
		failed[id] = true
	}

	// Rebuild from the previous batch so layer, input, and order carry over;
	// successful tasks are never re-executed.
	next := make([]core.AgentTask, 0, len(prev))
	for _, task := range prev {
		if failed[task.ID] {
			next = append(next, task)
		}
	}
	if len(next) == 0 {
		return nil, core.ErrState(core.CodeInvalidState, "retry requested with no failed agents")
	}

	state.IncrementRetry()
	return next, nil
}

func batchCounts(state *core.WorkflowState, batch []core.AgentTask) (success, total int) {
	ids := make([]core.AgentID, 0, len(batch))
	for _, t := range batch {
		ids = append(ids, t.ID)
	}
	return state.SuccessCount(ids...)
}
