package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

func TestSubscribeReceivesAllTypesByDefault(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewTaskStartedEvent("run-1", core.AgentCompanyProfiler))
	bus.Publish(NewStageChangedEvent("run-1", core.StageInit, core.StageBatchRunning))

	ev := <-ch
	assert.Equal(t, TypeTaskStarted, ev.EventType())
	assert.Equal(t, "run-1", ev.RunID())

	ev = <-ch
	assert.Equal(t, TypeStageChanged, ev.EventType())
}

func TestSubscribeFiltersByType(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe(TypeRunCompleted, TypeRunFailed)
	bus.Publish(NewTaskStartedEvent("run-1", core.AgentCompanyProfiler))
	bus.Publish(NewTaskCompletedEvent("run-1", core.AgentCompanyProfiler, time.Second))
	bus.Publish(NewRunCompletedEvent("run-1", 0.8))

	ev := <-ch
	assert.Equal(t, TypeRunCompleted, ev.EventType())

	select {
	case extra, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %s", extra.EventType())
		}
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := New(1)
	defer bus.Close()

	_ = bus.Subscribe()
	bus.Publish(NewTaskStartedEvent("run-1", core.AgentCompanyProfiler))
	bus.Publish(NewTaskStartedEvent("run-1", core.AgentMarketResearcher))
	bus.Publish(NewTaskStartedEvent("run-1", core.AgentCompetitorScout))

	assert.Equal(t, int64(2), bus.DroppedCount())
}

func TestPrioritySubscriberNeverDrops(t *testing.T) {
	bus := New(1)
	defer bus.Close()

	ch := bus.SubscribePriority()

	done := make(chan struct{})
	got := make([]Event, 0, 3)
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			got = append(got, <-ch)
		}
	}()

	bus.Publish(NewRunFailedEvent("run-1", 0.4, []core.AgentID{core.AgentNewsMonitor},
		core.ErrMaxRetriesExceeded(2, 0.4)))
	bus.Publish(NewRunCompletedEvent("run-2", 1.0))
	bus.Publish(NewRunCompletedEvent("run-3", 0.9))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("priority subscriber did not receive all events")
	}

	require.Len(t, got, 3)
	assert.Zero(t, bus.DroppedCount())

	failed, ok := got[0].(RunFinishedEvent)
	require.True(t, ok)
	assert.Equal(t, core.StageFailed, failed.Stage)
	assert.Equal(t, []core.AgentID{core.AgentNewsMonitor}, failed.Failed)
	assert.NotEmpty(t, failed.Error)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after unsubscribe must not panic or deliver.
	bus.Publish(NewTaskStartedEvent("run-1", core.AgentCompanyProfiler))
}

func TestCloseIsIdempotentAndStopsDelivery(t *testing.T) {
	bus := New(10)
	ch := bus.Subscribe()

	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish(NewRunCompletedEvent("run-1", 1.0))
	assert.Zero(t, bus.DroppedCount())
}
