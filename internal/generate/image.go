package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/blob"
	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/internal/registry"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
	"github.com/driftchat/backend/pkg/metrics"
)

// ImageParams carries one image-generation request.
type ImageParams struct {
	Messages           []model.InboundMessage
	MessageID          string
	ChatID             string
	ModelID            string
	PreviousResponseID string
	UploadToken        string
}

// ImageCoordinator drives one one-shot image generation. Unlike the text
// path there is no partial-progress persistence: assets are uploaded only
// after the full response, so failure is all-or-nothing.
type ImageCoordinator struct {
	registry *registry.Registry
	messages MessageWriter
	blobs    blob.Store
	logger   *logger.Logger
}

// NewImageCoordinator creates an image coordinator.
func NewImageCoordinator(reg *registry.Registry, messages MessageWriter, blobs blob.Store, log *logger.Logger) *ImageCoordinator {
	return &ImageCoordinator{
		registry: reg,
		messages: messages,
		blobs:    blobs,
		logger:   log,
	}
}

// Run executes one image generation. The returned error reports the
// failure for logging; the message record always reaches a terminal state
// regardless.
func (c *ImageCoordinator) Run(ctx context.Context, gen provider.ImageGenerator, p ImageParams) error {
	log := c.logger.WithGeneration(p.ChatID, p.MessageID, p.ModelID)

	prompt, err := latestUserPrompt(p.Messages)
	if err != nil {
		// Rejected before any provider call; no assets exist to link.
		c.abortTerminal(log, p.MessageID)
		return err
	}

	handle := c.registry.Register(ctx, p.MessageID)
	defer c.registry.Release(p.MessageID)

	result, err := gen.GenerateImage(handle.Context(), &provider.ImageRequest{
		Model:              p.ModelID,
		Prompt:             prompt,
		PreviousResponseID: p.PreviousResponseID,
	})
	if err != nil {
		log.Error("image generation failed", zap.Error(err))
		c.abortTerminal(log, p.MessageID)
		metrics.GenerationsTotal.WithLabelValues(p.ModelID, "error").Inc()
		return err
	}

	fileKeys := make([]string, 0, len(result.Assets))
	for _, asset := range result.Assets {
		key := uuid.New().String() + ".png"
		size, err := c.blobs.Put(handle.Context(), key, asset.Data)
		if err != nil {
			log.Error("asset upload failed", zap.String("key", key), zap.Error(err))
			c.abortTerminal(log, p.MessageID)
			metrics.GenerationsTotal.WithLabelValues(p.ModelID, "error").Inc()
			return fmt.Errorf("asset upload failed: %w", err)
		}
		if err := c.messages.PutFile(&model.FileRecord{
			ID:        key,
			MessageID: p.MessageID,
			Key:       key,
			MIMEType:  asset.MIMEType,
			Size:      size,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			log.Error("asset record write failed", zap.String("key", key), zap.Error(err))
			c.abortTerminal(log, p.MessageID)
			metrics.GenerationsTotal.WithLabelValues(p.ModelID, "error").Inc()
			return fmt.Errorf("asset record write failed: %w", err)
		}
		metrics.ImageAssetsUploaded.Inc()
		fileKeys = append(fileKeys, key)
	}

	err = c.messages.Finalize(p.MessageID, store.FinalizeUpdate{
		ContentText: result.Text,
		ResponseID:  result.ResponseID,
		FileIDs:     fileKeys,
	})
	if err != nil && !errors.Is(err, store.ErrFinished) {
		log.Error("terminal write failed", zap.Error(err))
		return err
	}

	metrics.GenerationsTotal.WithLabelValues(p.ModelID, "success").Inc()
	log.Info("image generation finished",
		zap.Int("assets", len(fileKeys)),
		zap.String("response_id", result.ResponseID))
	return nil
}

// abortTerminal finalizes the failure path. An out-of-band cancellation
// may have already marked the record aborted from another actor; the flag
// is re-checked so two racing terminal writers cannot both finalize.
func (c *ImageCoordinator) abortTerminal(log *logger.Logger, messageID string) {
	aborted, err := c.messages.Aborted(messageID)
	if err != nil {
		log.Warn("abort-flag check failed", zap.Error(err))
	}
	if aborted {
		log.Debug("message already aborted out-of-band, skipping finalize")
		return
	}

	if err := c.messages.Finalize(messageID, store.FinalizeUpdate{Aborted: true}); err != nil &&
		!errors.Is(err, store.ErrFinished) {
		log.Error("terminal write failed", zap.Error(err))
	}
}

// latestUserPrompt extracts the prompt from the newest message, which must
// be user-authored plain text for the image provider to accept it.
func latestUserPrompt(messages []model.InboundMessage) (string, error) {
	if len(messages) == 0 {
		return "", &UnsupportedInputError{Reason: "empty message list"}
	}

	latest := messages[len(messages)-1]
	if latest.Role != model.RoleUser {
		return "", &UnsupportedInputError{Reason: "latest message is not user-authored"}
	}
	if len(latest.FileIDs) > 0 {
		return "", &UnsupportedInputError{Reason: "raw file parts cannot be translated for the image provider"}
	}
	if latest.Content == "" {
		return "", &UnsupportedInputError{Reason: "latest message has no text content"}
	}
	return latest.Content, nil
}
