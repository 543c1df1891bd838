package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient talks to the Anthropic API directly. Anthropic models are
// normally reached through OpenRouter; the direct client exists for
// deployments with a first-party key.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

func toAnthropicParams(model string, messages []ChatMessage, maxTokens int) anthropic.MessageNewParams {
	// Catalog ids carry a vendor prefix; the first-party API does not.
	model = strings.TrimPrefix(model, "anthropic/")
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		params = append(params, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		})
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(params),
	}
}

// anthropicEvents is the subset of the SDK stream used here.
type anthropicEvents interface {
	Next() bool
	Current() anthropic.MessageStreamEvent
	Err() error
}

// ChatStream opens a streaming completion call. The Anthropic event stream
// carries no reasoning deltas; only text chunks are emitted.
func (c *AnthropicClient) ChatStream(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	stream := c.client.Messages.NewStreaming(ctx, toAnthropicParams(req.Model, req.Messages, req.MaxTokens))
	return &anthropicStream{events: stream}, nil
}

type anthropicStream struct {
	events   anthropicEvents
	usage    *Usage
	doneSent bool
}

func (s *anthropicStream) Recv() (*Chunk, error) {
	for s.events.Next() {
		event := s.events.Current()
		switch event.Type {
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok {
				if delta.Type == "text_delta" && delta.Text != "" {
					return &Chunk{Kind: ChunkTextDelta, Text: delta.Text}, nil
				}
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			s.usage = &Usage{CompletionTokens: int(event.Usage.OutputTokens)}
		}
	}

	if err := s.events.Err(); err != nil {
		return nil, err
	}
	if s.doneSent {
		return nil, io.EOF
	}
	s.doneSent = true
	return &Chunk{Kind: ChunkDone, Usage: s.usage}, nil
}

func (s *anthropicStream) Close() error {
	return nil
}

// Complete sends a non-streaming completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	resp, err := c.client.Messages.New(ctx, toAnthropicParams(req.Model, req.Messages, req.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text += block.Text
		}
	}

	return &Completion{
		Text:  text,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
