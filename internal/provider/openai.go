package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the OpenAI API or any OpenAI-compatible endpoint.
// OpenRouter is wire compatible, so the same client serves both; only the
// base URL and model id conventions differ.
type OpenAIClient struct {
	client *openai.Client
	name   string
}

// NewOpenAIClient creates a client against the OpenAI API.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		name:   "openai",
	}, nil
}

// NewOpenRouterClient creates a client against an OpenRouter-style endpoint.
func NewOpenRouterClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		name:   "openrouter",
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return out
}

// ChatStream opens a streaming completion call. Usage is requested on the
// final stream chunk so the coordinator can persist token counts.
func (c *OpenAIClient) ChatStream(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:           req.Model,
		Messages:        toOpenAIMessages(req.Messages),
		MaxTokens:       maxTokens,
		Stream:          true,
		StreamOptions:   &openai.StreamOptions{IncludeUsage: true},
		ReasoningEffort: req.ReasoningEffort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}

	return &openAIStream{stream: stream}, nil
}

// openAIStream adapts the go-openai stream to the chunk interface.
type openAIStream struct {
	stream   *openai.ChatCompletionStream
	usage    *Usage
	doneSent bool
}

func (s *openAIStream) Recv() (*Chunk, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			if s.doneSent {
				return nil, io.EOF
			}
			s.doneSent = true
			return &Chunk{Kind: ChunkDone, Usage: s.usage}, nil
		}
		if err != nil {
			return nil, err
		}

		// The usage-only chunk arrives with no choices, just before EOF.
		if resp.Usage != nil {
			s.usage = &Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.ReasoningContent != "" {
			return &Chunk{Kind: ChunkReasoningDelta, Text: delta.ReasoningContent}, nil
		}
		if delta.Content != "" {
			return &Chunk{Kind: ChunkTextDelta, Text: delta.Content}, nil
		}
		// Role-only or empty deltas are skipped.
	}
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}

// Complete sends a non-streaming completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &Completion{
		Text:  text,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// GenerateImage runs a one-shot image generation call and decodes the
// returned assets. The images API reports no native response id, so one is
// synthesized from the response timestamp for chaining bookkeeping.
func (c *OpenAIClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	model := strings.TrimPrefix(req.Model, "openai/")

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:          model,
		Prompt:         req.Prompt,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	result := &ImageResult{
		ResponseID: fmt.Sprintf("img_%d", resp.Created),
	}
	for _, item := range resp.Data {
		if item.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image payload: %w", err)
		}
		result.Assets = append(result.Assets, Asset{
			Data:     data,
			MIMEType: "image/png",
		})
		if result.Text == "" {
			result.Text = item.RevisedPrompt
		}
	}

	return result, nil
}
