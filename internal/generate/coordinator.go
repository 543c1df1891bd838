// Package generate drives generation requests end-to-end: provider
// streaming, incremental persistence, cancellation, and terminal writes.
package generate

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/internal/registry"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
	"github.com/driftchat/backend/pkg/metrics"
)

// MessageWriter is the slice of the message store the coordinators write
// through.
type MessageWriter interface {
	AppendFragment(id string, field store.FragmentField, seq int, text string) error
	Finalize(id string, fin store.FinalizeUpdate) error
	Aborted(id string) (bool, error)
	PutFile(file *model.FileRecord) error
	SetChatTitle(chatID, title string) error
}

// StreamParams carries one text-generation request.
type StreamParams struct {
	Messages  []provider.ChatMessage
	MessageID string
	ChatID    string
	ModelID   string
	Web       bool
	Reasoning model.ReasoningEffort
}

// StreamCoordinator drives one streaming text generation.
type StreamCoordinator struct {
	registry *registry.Registry
	messages MessageWriter
	logger   *logger.Logger
}

// NewStreamCoordinator creates a stream coordinator.
func NewStreamCoordinator(reg *registry.Registry, messages MessageWriter, log *logger.Logger) *StreamCoordinator {
	return &StreamCoordinator{
		registry: reg,
		messages: messages,
		logger:   log,
	}
}

// Run executes the full generation lifecycle for one message. All errors
// terminate in store writes; nothing propagates, since the HTTP response
// was sent before generation began.
func (c *StreamCoordinator) Run(ctx context.Context, client provider.Client, p StreamParams) {
	log := c.logger.WithGeneration(p.ChatID, p.MessageID, p.ModelID)

	handle := c.registry.Register(ctx, p.MessageID)
	defer c.registry.Release(p.MessageID)
	genCtx := handle.Context()

	modelID := p.ModelID
	if p.Web {
		modelID = provider.WithWebSearch(modelID)
	}
	effort := ""
	if p.Reasoning != "" && p.Reasoning != model.ReasoningOff {
		effort = string(p.Reasoning)
	}

	start := time.Now()
	stream, err := client.ChatStream(genCtx, &provider.ChatRequest{
		Model:           modelID,
		Messages:        p.Messages,
		ReasoningEffort: effort,
	})
	if err != nil {
		log.Error("failed to open provider stream", zap.Error(err))
		c.finish(log, p.MessageID, modelID, start, nil, false, genCtx.Err() != nil)
		return
	}
	defer stream.Close()

	// Fragment writes share one monotonic sequence space per message.
	// Writes are awaited sequentially: a slow store backpressures stream
	// consumption instead of risking out-of-order application.
	seq := 0
	var usage *provider.Usage
	completed := false
	cancelled := false

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if genCtx.Err() != nil {
				cancelled = true
				break
			}
			log.Error("provider stream failed", zap.Error(err), zap.Int("chunks", seq))
			c.finish(log, p.MessageID, modelID, start, nil, false, false)
			return
		}

		switch chunk.Kind {
		case provider.ChunkTextDelta:
			c.persistFragment(log, p.MessageID, store.FieldContent, seq, chunk.Text)
			seq++
		case provider.ChunkReasoningDelta:
			c.persistFragment(log, p.MessageID, store.FieldReasoning, seq, chunk.Text)
			seq++
		case provider.ChunkDone:
			completed = true
			usage = chunk.Usage
		}

		if genCtx.Err() != nil {
			cancelled = true
			break
		}
	}

	if cancelled || genCtx.Err() != nil {
		c.finish(log, p.MessageID, modelID, start, nil, false, true)
		return
	}
	c.finish(log, p.MessageID, modelID, start, usage, completed, false)
}

// persistFragment applies one fragment merge. A failed write is logged and
// skipped; a dropped intermediate chunk must not abort the generation.
func (c *StreamCoordinator) persistFragment(log *logger.Logger, messageID string, field store.FragmentField, seq int, text string) {
	if err := c.messages.AppendFragment(messageID, field, seq, text); err != nil {
		metrics.FragmentWriteFailures.WithLabelValues(string(field)).Inc()
		log.Warn("fragment write failed, skipping chunk",
			zap.String("field", string(field)),
			zap.Int("seq", seq),
			zap.Error(err))
	}
}

// finish writes the terminal update for one of the three exit paths:
// success (usage set), cancellation, or failure.
func (c *StreamCoordinator) finish(log *logger.Logger, messageID, modelID string, start time.Time, usage *provider.Usage, completed, aborted bool) {
	elapsed := time.Since(start)

	fin := store.FinalizeUpdate{Aborted: aborted}
	status := "error"
	tokens := 0
	switch {
	case aborted:
		status = "cancelled"
	case completed:
		status = "success"
		ms := elapsed.Milliseconds()
		fin.TimeMs = &ms
		if usage != nil {
			tokens = usage.CompletionTokens
			fin.Tokens = &tokens
		}
	}

	if err := c.messages.Finalize(messageID, fin); err != nil {
		if errors.Is(err, store.ErrFinished) {
			log.Debug("message already finalized", zap.String("status", status))
		} else {
			log.Error("terminal write failed", zap.Error(err))
		}
	}

	metrics.RecordGeneration(modelID, status, elapsed.Seconds(), tokens)
	log.Info("generation finished",
		zap.String("status", status),
		zap.Duration("elapsed", elapsed),
		zap.Int("tokens", tokens))
}
