package workflow

import (
	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Decision is the validation gate's verdict for a batch.
type Decision string

const (
	DecisionProceed Decision = "proceed"
	DecisionRetry   Decision = "retry"
	DecisionFail    Decision = "fail"
)

// Gate computes the aggregate success metric over a batch and decides
// whether the run proceeds, retries the failed subset, or fails terminally.
// It is a pure function of the recorded results and the retry count; it
// never mutates state.
type Gate struct {
	// Threshold is the minimum success rate, inclusive: rate >= threshold
	// proceeds.
	Threshold float64
	// MaxRetries bounds how many retry cycles may still be granted.
	MaxRetries int
}

// Evaluate computes success_count / total_count over the batch's agents and
// returns the decision with the rate. A zero denominator is an explicit
// error; the ratio is never inverted.
func (g Gate) Evaluate(state *core.WorkflowState, batch []core.AgentID) (Decision, float64, error) {
	success, total := state.SuccessCount(batch...)
	if total == 0 {
		return "", 0, core.ErrValidation(core.CodeEmptyBatch, "validation over an empty batch")
	}

	rate := float64(success) / float64(total)
	if rate >= g.Threshold {
		return DecisionProceed, rate, nil
	}
	if state.RetryCount() < g.MaxRetries {
		return DecisionRetry, rate, nil
	}
	return DecisionFail, rate, nil
}
