package claude

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

func sseEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.(http.Flusher).Flush()
}

func textDelta(text string) string {
	return fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text)
}

const (
	messageStart = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-test","usage":{"input_tokens":12,"output_tokens":1}}}`
	messageDelta = `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":7}}`
	messageStop  = `{"type":"message_stop"}`
)

func streamServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", WithBaseURL(srv.URL), WithModel("claude-test"))
}

func testTask() core.AgentTask {
	return core.NewAgentTask(core.AgentNewsMonitor, core.LayerResearch, core.TaskInput{
		StartupName:        "acme",
		StartupDescription: "warehouse robotics",
	})
}

func TestExecuteStreamsDeltasToTrace(t *testing.T) {
	client := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseEvent(w, "message_start", messageStart)
		sseEvent(w, "content_block_delta", textDelta("Hello"))
		sseEvent(w, "content_block_delta", textDelta(", world"))
		sseEvent(w, "message_delta", messageDelta)
		sseEvent(w, "message_stop", messageStop)
	})

	trace := core.NewExecutionTrace()
	output, err := client.Execute(context.Background(), testTask(), trace)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", output)

	snap := trace.Snapshot()
	assert.Equal(t, "Hello, world", snap.PartialOutput)
	assert.Equal(t, 1, snap.Turns)
	assert.Equal(t, 12, snap.TokensIn)
	assert.Equal(t, 7, snap.TokensOut)

	latched, done := trace.Completed()
	require.True(t, done)
	assert.Equal(t, "Hello, world", latched)
}

func TestExecuteTimeoutKeepsStreamedOutput(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	client := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseEvent(w, "message_start", messageStart)
		sseEvent(w, "content_block_delta", textDelta("three articles so far"))
		// Hold the stream open past the caller's deadline.
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	trace := core.NewExecutionTrace()
	_, err := client.Execute(ctx, testTask(), trace)
	require.Error(t, err)

	// The deadline interrupted the stream, but everything received before it
	// stays on the trace.
	assert.Equal(t, "three articles so far", trace.PartialOutput())
	_, done := trace.Completed()
	assert.False(t, done)
}
