// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/generate"
	"github.com/driftchat/backend/internal/keys"
	"github.com/driftchat/backend/internal/middleware"
	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/internal/registry"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
)

// ProviderFactory builds provider clients with request-scoped API keys.
type ProviderFactory interface {
	ChatClient(name, apiKey string) (provider.Client, error)
	ImageClient(name, apiKey string) (provider.ImageGenerator, error)
}

// GenerateHandler handles the generation entrypoint and cancellation.
type GenerateHandler struct {
	messages  *store.MessageStore
	resolver  *keys.Resolver
	registry  *registry.Registry
	runner    *generate.Runner
	streams   *generate.StreamCoordinator
	images    *generate.ImageCoordinator
	titles    *generate.TitleGenerator
	providers ProviderFactory
	logger    *logger.Logger
}

// NewGenerateHandler creates the generation handler.
func NewGenerateHandler(
	messages *store.MessageStore,
	resolver *keys.Resolver,
	reg *registry.Registry,
	runner *generate.Runner,
	streams *generate.StreamCoordinator,
	images *generate.ImageCoordinator,
	titles *generate.TitleGenerator,
	providers ProviderFactory,
	log *logger.Logger,
) *GenerateHandler {
	return &GenerateHandler{
		messages:  messages,
		resolver:  resolver,
		registry:  reg,
		runner:    runner,
		streams:   streams,
		images:    images,
		titles:    titles,
		providers: providers,
		logger:    log,
	}
}

// Generate handles POST /api/model. The response acknowledges dispatch
// only; all generation progress is observed through the store's change
// feed, never through this response.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateGenerateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := req.Config
	info, _ := model.LookupModel(cfg.Model)

	apiKey, err := h.resolver.Resolve(cfg.UserID, info.Provider)
	if err != nil {
		h.logger.Error("API key resolution failed",
			zap.String("provider", info.Provider), zap.Error(err))
		writeError(w, http.StatusBadGateway, "no usable API key for provider")
		return
	}

	// The placeholder is created synchronously so the client's reactive
	// subscription sees the pending assistant message immediately.
	if err := h.messages.CreatePlaceholder(cfg.MessageID, cfg.ChatID, cfg.Model); err != nil {
		h.logger.Error("placeholder write failed",
			zap.String("message_id", cfg.MessageID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	if info.Image {
		h.dispatchImage(req, info, apiKey)
	} else {
		h.dispatchStream(req, info, apiKey)
	}

	// The first user message of a chat also kicks off title generation.
	if first, ok := firstChatMessage(req.Messages); ok {
		h.runner.Go("title:"+cfg.ChatID, func() {
			h.titles.Generate(context.Background(), cfg.ChatID, first)
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *GenerateHandler) dispatchStream(req model.GenerateRequest, info model.ModelInfo, apiKey string) {
	cfg := req.Config

	client, err := h.providers.ChatClient(info.Provider, apiKey)
	if err != nil {
		h.logger.Error("provider client construction failed", zap.Error(err))
		h.finalizeDispatchFailure(cfg.MessageID)
		return
	}

	chatMessages := make([]provider.ChatMessage, len(req.Messages))
	for i, msg := range req.Messages {
		chatMessages[i] = provider.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	h.runner.Go("generate:"+cfg.MessageID, func() {
		h.streams.Run(context.Background(), client, generate.StreamParams{
			Messages:  chatMessages,
			MessageID: cfg.MessageID,
			ChatID:    cfg.ChatID,
			ModelID:   cfg.Model,
			Web:       cfg.Web,
			Reasoning: cfg.Reasoning,
		})
	})
}

func (h *GenerateHandler) dispatchImage(req model.GenerateRequest, info model.ModelInfo, apiKey string) {
	cfg := req.Config

	client, err := h.providers.ImageClient(info.Provider, apiKey)
	if err != nil {
		h.logger.Error("image client construction failed", zap.Error(err))
		h.finalizeDispatchFailure(cfg.MessageID)
		return
	}

	h.runner.Go("image:"+cfg.MessageID, func() {
		_ = h.images.Run(context.Background(), client, generate.ImageParams{
			Messages:           req.Messages,
			MessageID:          cfg.MessageID,
			ChatID:             cfg.ChatID,
			ModelID:            cfg.Model,
			PreviousResponseID: cfg.PreviousResponseID,
			UploadToken:        cfg.UploadToken,
		})
	})
}

// finalizeDispatchFailure terminates a placeholder whose generation never
// started. The acknowledgement was already sent, so the store is the only
// channel left for surfacing the failure.
func (h *GenerateHandler) finalizeDispatchFailure(messageID string) {
	if err := h.messages.Finalize(messageID, store.FinalizeUpdate{}); err != nil &&
		!errors.Is(err, store.ErrFinished) {
		h.logger.Error("failed to finalize undispatched message",
			zap.String("message_id", messageID), zap.Error(err))
	}
}

// Cancel handles POST /api/model/{messageID}/cancel. Cancelling an
// unknown or finished generation is not an error.
func (h *GenerateHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if err := middleware.ValidateID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	if h.registry.Cancel(messageID) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	// No local handle: the generation either finished, never existed, or
	// runs on another instance. The durable abort write covers the last
	// case; the terminal guard makes the first two harmless.
	err := h.messages.Finalize(messageID, store.FinalizeUpdate{Aborted: true})
	if err != nil && !errors.Is(err, store.ErrFinished) && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("durable abort write failed",
			zap.String("message_id", messageID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to cancel")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// firstChatMessage reports the text of the first user message when the
// request carries a chat's opening exchange.
func firstChatMessage(messages []model.InboundMessage) (string, bool) {
	userCount := 0
	first := ""
	for _, msg := range messages {
		if msg.Role == model.RoleUser {
			if userCount == 0 {
				first = msg.Content
			}
			userCount++
		}
	}
	if userCount == 1 && first != "" {
		return first, true
	}
	return "", false
}
