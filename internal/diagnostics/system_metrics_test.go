package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectPopulatesMemory(t *testing.T) {
	c := NewSystemMetricsCollector()
	stats := c.Collect()

	assert.Greater(t, stats.MemTotalMB, 0.0)
	assert.GreaterOrEqual(t, stats.MemPercent, 0.0)
	assert.LessOrEqual(t, stats.MemPercent, 100.0)
}

func TestCPUPercentNeedsTwoSamples(t *testing.T) {
	c := NewSystemMetricsCollector()

	first := c.Collect()
	assert.Zero(t, first.CPUPercent)

	second := c.Collect()
	assert.GreaterOrEqual(t, second.CPUPercent, 0.0)
	assert.LessOrEqual(t, second.CPUPercent, 100.0)
}

func TestHardwareInfoCached(t *testing.T) {
	c := NewSystemMetricsCollector()
	first := c.Collect()
	second := c.Collect()

	assert.Equal(t, first.CPUModel, second.CPUModel)
	assert.Equal(t, first.CPUCores, second.CPUCores)
}
