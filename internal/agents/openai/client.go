// Package openai adapts the OpenAI chat-completion API to the agent contract.
package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/hugo-lorenzo-mato/diligent/internal/agents"
	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Client executes agent tasks against the OpenAI API.
type Client struct {
	client       *goopenai.Client
	defaultModel string
	maxTokens    int
	baseURL      string
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the default model for task execution.
func WithModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithMaxTokens sets the output token cap per task.
func WithMaxTokens(n int) Option {
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

// New creates an OpenAI-backed agent adapter.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		defaultModel: goopenai.GPT4oMini,
		maxTokens:    4096,
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	c.client = goopenai.NewClientWithConfig(cfg)
	return c
}

// Name implements core.Agent.
func (c *Client) Name() string { return "openai" }

// Ping checks reachability by listing models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return core.ErrCollaboratorUnavailable("openai", err)
	}
	return nil
}

// Execute runs one task over the streaming chat-completion API. Each content
// delta is appended to the trace as it arrives, so a timeout or cancellation
// still leaves the output streamed so far behind. Completion is latched
// before returning.
func (c *Client) Execute(ctx context.Context, task core.AgentTask, trace *core.ExecutionTrace) (string, error) {
	model := c.defaultModel
	if task.Model != "" {
		model = task.Model
	}

	req := goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: agents.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: agents.BuildPrompt(task)},
		},
		MaxTokens: c.maxTokens,
		// Usage arrives on the final chunk only when requested.
		StreamOptions: &goopenai.StreamOptions{IncludeUsage: true},
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	trace.RecordTurn()

	var output strings.Builder
	var usage *goopenai.Usage
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		if resp.Usage != nil {
			usage = resp.Usage
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			trace.AppendOutput(delta)
			output.WriteString(delta)
		}
	}
	if usage != nil {
		trace.RecordTokens(usage.PromptTokens, usage.CompletionTokens)
	}

	trace.MarkCompleted(output.String())
	return output.String(), nil
}
