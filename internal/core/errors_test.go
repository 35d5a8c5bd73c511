package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorIsMatchesCategoryAndCode(t *testing.T) {
	err := ErrAgentTimeout("news_monitor", "2m")

	assert.True(t, errors.Is(err, &DomainError{Category: ErrCatTimeout, Code: CodeAgentTimeout}))
	assert.False(t, errors.Is(err, &DomainError{Category: ErrCatExecution, Code: CodeAgentFailed}))
}

func TestDomainErrorUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrCollaboratorUnavailable("claude", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(ErrAgentExecution("risk_assessor", nil)))
	assert.True(t, IsRetryable(ErrAgentTimeout("risk_assessor", "2m")))
	assert.False(t, IsRetryable(ErrMaxRetriesExceeded(2, 0.4)))
	assert.False(t, IsRetryable(ErrRunCancelled("shutdown")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestCategoryExtraction(t *testing.T) {
	assert.Equal(t, ErrCatTimeout, GetCategory(ErrAgentTimeout("x", "1s")))
	assert.Equal(t, ErrCatInternal, GetCategory(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("while polling: %w", ErrNotFound("job", "abc"))
	assert.True(t, IsCategory(wrapped, ErrCatNotFound))
}

func TestDomainErrorDetails(t *testing.T) {
	err := ErrMaxRetriesExceeded(2, 0.4)
	err.WithDetail("failed_agents", []AgentID{AgentNewsMonitor})

	assert.Equal(t, 2, err.Details["retries"])
	assert.InDelta(t, 0.4, err.Details["success_rate"].(float64), 1e-9)
	assert.Contains(t, err.Details, "failed_agents")
}

func TestDomainErrorJSONOmitsCause(t *testing.T) {
	err := ErrAgentExecution("news_monitor", fmt.Errorf("socket hangup"))

	raw, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, string(ErrCatExecution), got["category"])
	assert.Equal(t, CodeAgentFailed, got["code"])
	assert.NotContains(t, got, "cause")

	var back DomainError
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, CodeAgentFailed, back.Code)
	assert.True(t, back.Retryable)
	assert.Nil(t, back.Cause)
}
