// Package report turns accumulated run results into the final
// due-diligence report and investment decision.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/logging"
	"github.com/hugo-lorenzo-mato/diligent/internal/workflow"
)

// Synthesizer implements core.Synthesizer by running the synthesis roster
// (report generator, then decision agent) against the accumulated findings.
type Synthesizer struct {
	runner *workflow.Runner
	logger *logging.Logger
}

// NewSynthesizer creates the synthesis collaborator.
func NewSynthesizer(runner *workflow.Runner, logger *logging.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synthesizer{runner: runner, logger: logger}
}

// Synthesize produces the report and decision from the run's successful
// outputs. Both synthesis results are recorded on the state so the final
// snapshot accounts for every task that ever ran.
func (s *Synthesizer) Synthesize(ctx context.Context, state *core.WorkflowState) (string, string, error) {
	findings := AssembleFindings(state)
	input := state.Input
	input.Context = findings

	reportTask := core.NewAgentTask(core.AgentReportGenerator, core.LayerSynthesis, input)
	reportRes := s.runner.Run(ctx, reportTask)
	state.RecordResult(reportRes)
	if !reportRes.Success {
		return "", "", reportRes.Err
	}

	decisionTask := core.NewAgentTask(core.AgentDecisionAgent, core.LayerSynthesis, input)
	decisionRes := s.runner.Run(ctx, decisionTask)
	state.RecordResult(decisionRes)
	if !decisionRes.Success {
		return "", "", decisionRes.Err
	}

	s.logger.Info("synthesis completed",
		"run_id", state.RunID,
		"report_len", len(reportRes.Output),
	)
	return reportRes.Output, decisionRes.Output, nil
}

// AssembleFindings concatenates the successful outputs per agent, sorted by
// agent ID for stable prompts.
func AssembleFindings(state *core.WorkflowState) string {
	results := state.Results()
	ids := make([]core.AgentID, 0, len(results))
	for id, r := range results {
		if r.Success && (core.KnownAgent(id) && id != core.AgentReportGenerator && id != core.AgentDecisionAgent) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", id, results[id].Output)
	}
	return b.String()
}
