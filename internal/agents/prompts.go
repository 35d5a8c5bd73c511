package agents

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// roleBriefs describes what each roster agent investigates. The text is the
// opaque payload handed to the model provider; the orchestrator never
// inspects it.
var roleBriefs = map[core.AgentID]string{
	core.AgentCompanyProfiler:  "Profile the company: founding story, product, business model, traction, and notable pivots.",
	core.AgentMarketResearcher: "Research the market: size, growth, segmentation, and where this startup fits.",
	core.AgentCompetitorScout:  "Identify direct and adjacent competitors, their funding, and this startup's differentiation.",
	core.AgentTeamInvestigator: "Investigate the founding team: backgrounds, prior exits, domain credibility, key hires.",
	core.AgentNewsMonitor:      "Collect recent news, press coverage, and public sentiment about the company.",
	core.AgentFinancialAnalyst: "Assess the financial picture: revenue signals, burn indicators, funding history, unit economics.",
	core.AgentRiskAssessor:     "Enumerate execution, market, and regulatory risks with severity estimates.",
	core.AgentTechEvaluator:    "Evaluate the technology: defensibility, build-vs-buy exposure, scalability concerns.",
	core.AgentLegalReviewer:    "Review legal posture: IP, licensing, pending disputes, compliance obligations.",
	core.AgentReportGenerator:  "Compose a structured due-diligence report from the findings provided.",
	core.AgentDecisionAgent:    "Recommend invest, hold, or pass with a short rationale grounded in the findings.",
}

// BuildPrompt renders the user prompt for one task.
func BuildPrompt(task core.AgentTask) string {
	var b strings.Builder
	brief, ok := roleBriefs[task.ID]
	if !ok {
		brief = "Analyze the startup described below."
	}
	fmt.Fprintf(&b, "%s\n\nStartup: %s\n", brief, task.Input.StartupName)
	if task.Input.StartupDescription != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Input.StartupDescription)
	}
	if task.Input.FundingStage != "" {
		fmt.Fprintf(&b, "Funding stage: %s\n", task.Input.FundingStage)
	}
	if task.Input.Context != "" {
		fmt.Fprintf(&b, "\nPrior findings:\n%s\n", task.Input.Context)
	}
	return b.String()
}

// SystemPrompt is shared by all roster agents.
const SystemPrompt = "You are one specialist in a due-diligence team. " +
	"Answer only within your brief, be concrete, and cite what you are inferring from."
