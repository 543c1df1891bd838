// Package provider abstracts upstream LLM APIs behind a streaming chunk
// interface consumed by the generation coordinators.
package provider

import (
	"context"
	"errors"
)

// ChunkKind classifies one streamed output chunk.
type ChunkKind string

const (
	// ChunkTextDelta carries a fragment of visible output text.
	ChunkTextDelta ChunkKind = "text-delta"
	// ChunkReasoningDelta carries a fragment of chain-of-thought text.
	ChunkReasoningDelta ChunkKind = "reasoning-delta"
	// ChunkDone terminates a stream and carries usage when reported.
	ChunkDone ChunkKind = "done"
)

// Usage is the token accounting reported by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Chunk is one element of a provider output stream.
type Chunk struct {
	Kind  ChunkKind
	Text  string
	Usage *Usage
}

// ChatMessage is a conversation message in provider format.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest is a streaming chat completion request. ReasoningEffort is
// one of low/medium/high; empty means the provider default with no
// reasoning requested.
type ChatRequest struct {
	Model           string
	Messages        []ChatMessage
	MaxTokens       int
	ReasoningEffort string
}

// ChatStream is a Recv-style sequence of chunks. Recv returns io.EOF after
// the ChunkDone chunk has been delivered.
type ChatStream interface {
	Recv() (*Chunk, error)
	Close() error
}

// CompletionRequest is a one-shot completion request.
type CompletionRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}

// Completion is a one-shot completion response.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Client is the interface for chat completion providers.
type Client interface {
	// ChatStream opens a streaming completion call.
	ChatStream(ctx context.Context, req *ChatRequest) (ChatStream, error)

	// Complete sends a non-streaming completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// Name returns the provider name.
	Name() string
}

// ImageRequest is a one-shot image generation request. PreviousResponseID
// chains multi-turn edits for providers that keep response state.
type ImageRequest struct {
	Model              string
	Prompt             string
	PreviousResponseID string
}

// Asset is one generated binary asset, already decoded.
type Asset struct {
	Data     []byte
	MIMEType string
}

// ImageResult is the response of an image generation call.
type ImageResult struct {
	ResponseID string
	Text       string
	Assets     []Asset
}

// ImageGenerator is implemented by providers that can produce images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error)
}

// WebSearchSuffix is appended to a model id to request provider-side web
// search augmentation (OpenRouter convention).
const WebSearchSuffix = ":online"

// WithWebSearch resolves the effective model id for a web-augmented request.
func WithWebSearch(model string) string {
	return model + WebSearchSuffix
}

// ErrNoAPIKey is returned by constructors when no key is supplied.
var ErrNoAPIKey = errors.New("provider API key is required")
