package core

// Research roster: independent agents fanned out in the first batch.
const (
	AgentCompanyProfiler  AgentID = "company_profiler"
	AgentMarketResearcher AgentID = "market_researcher"
	AgentCompetitorScout  AgentID = "competitor_scout"
	AgentTeamInvestigator AgentID = "team_investigator"
	AgentNewsMonitor      AgentID = "news_monitor"
)

// Analysis roster: runs after research validates.
const (
	AgentFinancialAnalyst AgentID = "financial_analyst"
	AgentRiskAssessor     AgentID = "risk_assessor"
	AgentTechEvaluator    AgentID = "tech_evaluator"
	AgentLegalReviewer    AgentID = "legal_reviewer"
)

// Synthesis roster: produces the report and the decision.
const (
	AgentReportGenerator AgentID = "report_generator"
	AgentDecisionAgent   AgentID = "decision_agent"
)

// ResearchRoster returns the research agent IDs in batch order.
func ResearchRoster() []AgentID {
	return []AgentID{
		AgentCompanyProfiler,
		AgentMarketResearcher,
		AgentCompetitorScout,
		AgentTeamInvestigator,
		AgentNewsMonitor,
	}
}

// AnalysisRoster returns the analysis agent IDs in batch order.
func AnalysisRoster() []AgentID {
	return []AgentID{
		AgentFinancialAnalyst,
		AgentRiskAssessor,
		AgentTechEvaluator,
		AgentLegalReviewer,
	}
}

// KnownAgent reports whether the ID belongs to any roster.
func KnownAgent(id AgentID) bool {
	for _, r := range ResearchRoster() {
		if r == id {
			return true
		}
	}
	for _, a := range AnalysisRoster() {
		if a == id {
			return true
		}
	}
	return id == AgentReportGenerator || id == AgentDecisionAgent
}

// BuildTasks creates immutable tasks for the given roster and input.
func BuildTasks(ids []AgentID, layer Layer, input TaskInput) []AgentTask {
	tasks := make([]AgentTask, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, NewAgentTask(id, layer, input))
	}
	return tasks
}
