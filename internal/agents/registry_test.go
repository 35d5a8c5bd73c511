package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

type stubAgent struct {
	name string
}

func (s stubAgent) Name() string                 { return s.name }
func (s stubAgent) Ping(_ context.Context) error { return nil }
func (s stubAgent) Execute(_ context.Context, _ core.AgentTask, _ *core.ExecutionTrace) (string, error) {
	return "", nil
}

func TestRegistryGetAndList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubAgent{name: "openai"})
	reg.Register(stubAgent{name: "claude"})

	agent, err := reg.Get("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", agent.Name())

	assert.Equal(t, []string{"claude", "openai"}, reg.List())
}

func TestRegistryUnknownAdapter(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("gemini")
	require.Error(t, err)

	var domErr *core.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, core.CodeAgentUnknown, domErr.Code)
}

func TestRegistryReplaceByName(t *testing.T) {
	reg := NewRegistry()
	first := stubAgent{name: "claude"}
	second := stubAgent{name: "claude"}
	reg.Register(first)
	reg.Register(second)

	assert.Len(t, reg.List(), 1)
	agent, err := reg.Get("claude")
	require.NoError(t, err)
	assert.Equal(t, second, agent)
}

func TestBuildPromptIncludesBriefAndInput(t *testing.T) {
	task := core.NewAgentTask(core.AgentMarketResearcher, core.LayerResearch, core.TaskInput{
		StartupName:        "acme",
		StartupDescription: "warehouse robotics",
		FundingStage:       "seed",
	})

	prompt := BuildPrompt(task)
	assert.Contains(t, prompt, "Research the market")
	assert.Contains(t, prompt, "Startup: acme")
	assert.Contains(t, prompt, "Description: warehouse robotics")
	assert.Contains(t, prompt, "Funding stage: seed")
	assert.NotContains(t, prompt, "Prior findings")
}

func TestBuildPromptCarriesPriorFindings(t *testing.T) {
	input := core.TaskInput{
		StartupName: "acme",
		Context:     "## market_researcher\n\nlarge market",
	}
	task := core.NewAgentTask(core.AgentFinancialAnalyst, core.LayerAnalysis, input)

	prompt := BuildPrompt(task)
	assert.Contains(t, prompt, "Prior findings:")
	assert.Contains(t, prompt, "large market")
}

func TestBuildPromptFallsBackForUnknownAgent(t *testing.T) {
	task := core.NewAgentTask("mystery_agent", core.LayerResearch, core.TaskInput{StartupName: "acme"})
	prompt := BuildPrompt(task)
	assert.True(t, strings.HasPrefix(prompt, "Analyze the startup"))
}

func TestEveryRosterAgentHasABrief(t *testing.T) {
	for _, id := range append(core.ResearchRoster(), core.AnalysisRoster()...) {
		assert.Contains(t, roleBriefs, id, "agent %s", id)
	}
	assert.Contains(t, roleBriefs, core.AgentReportGenerator)
	assert.Contains(t, roleBriefs, core.AgentDecisionAgent)
}
