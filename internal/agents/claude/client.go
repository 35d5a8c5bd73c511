// Package claude adapts Anthropic's Messages API to the agent contract.
package claude

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hugo-lorenzo-mato/diligent/internal/agents"
	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Client executes agent tasks against the Claude API.
type Client struct {
	client       *anthropic.Client
	defaultModel anthropic.Model
	maxTokens    int64
	baseURL      string
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the default model for task execution.
func WithModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = anthropic.Model(model)
	}
}

// WithMaxTokens sets the output token cap per task.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithBaseURL points the client at a compatible endpoint or proxy.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// New creates a Claude-backed agent adapter.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		defaultModel: anthropic.ModelClaude3_5SonnetLatest,
		maxTokens:    4096,
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	c.client = &client
	return c
}

// Name implements core.Agent.
func (c *Client) Name() string { return "claude" }

// Ping checks reachability with a minimal request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.defaultModel,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return core.ErrCollaboratorUnavailable("claude", err)
	}
	return nil
}

// Execute runs one task over the streaming Messages API. Each text delta is
// appended to the trace as it arrives, so a timeout or cancellation still
// leaves the output streamed so far behind. Logical completion is latched
// before returning so a late transport failure cannot downgrade the result.
func (c *Client) Execute(ctx context.Context, task core.AgentTask, trace *core.ExecutionTrace) (string, error) {
	model := c.defaultModel
	if task.Model != "" {
		model = anthropic.Model(task.Model)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(agents.BuildPrompt(task))),
		},
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var output strings.Builder
	var outputTokens int64
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStartEvent()
			trace.RecordTurn()
			trace.RecordTokens(int(start.Message.Usage.InputTokens), 0)
		case "content_block_delta":
			delta := event.AsContentBlockDeltaEvent()
			if delta.Delta.Type == "text_delta" {
				text := delta.Delta.AsTextContentBlockDelta().Text
				trace.AppendOutput(text)
				output.WriteString(text)
			}
		case "message_delta":
			// Output-token usage on this event is cumulative; record once at
			// the end.
			outputTokens = event.AsMessageDeltaEvent().Usage.OutputTokens
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	trace.RecordTokens(0, int(outputTokens))

	trace.MarkCompleted(output.String())
	return output.String(), nil
}
