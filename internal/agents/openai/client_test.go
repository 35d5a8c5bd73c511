package openai

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

func contentChunk(text string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":%q}}]}`, text)
}

const usageChunk = `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

func streamServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", WithBaseURL(srv.URL+"/v1"), WithModel("gpt-test"))
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
		flusher := w.(http.Flusher)
		for _, chunk := range []string{contentChunk("Hello"), contentChunk(", world"), usageChunk} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	trace := core.NewExecutionTrace()
	output, err := client.Execute(context.Background(), testTask(), trace)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", output)

	snap := trace.Snapshot()
	assert.Equal(t, "Hello, world", snap.PartialOutput)
	assert.Equal(t, 1, snap.Turns)
	assert.Equal(t, 10, snap.TokensIn)
	assert.Equal(t, 5, snap.TokensOut)

	latched, done := trace.Completed()
	require.True(t, done)
	assert.Equal(t, "Hello, world", latched)
}

func TestExecuteTimeoutKeepsStreamedOutput(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	client := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", contentChunk("three articles so far"))
		flusher.Flush()
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
