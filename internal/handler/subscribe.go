package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/middleware"
	"github.com/driftchat/backend/internal/model"
	natsclient "github.com/driftchat/backend/internal/nats"
	"github.com/driftchat/backend/pkg/logger"
	"github.com/driftchat/backend/pkg/metrics"
)

// SubscribeHandler serves the reactive consumption surface: record change
// events for one chat, forwarded from the feed as SSE.
type SubscribeHandler struct {
	feed   *natsclient.Feed
	logger *logger.Logger
}

// NewSubscribeHandler creates a subscribe handler.
func NewSubscribeHandler(feed *natsclient.Feed, log *logger.Logger) *SubscribeHandler {
	return &SubscribeHandler{
		feed:   feed,
		logger: log,
	}
}

// Subscribe handles GET /api/chats/{chatID}/subscribe.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	if err := middleware.ValidateID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat ID")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// The subscription callback runs on the NATS delivery goroutine;
	// events are handed to the writer loop through a buffered channel so
	// a slow client cannot stall the connection's dispatcher.
	events := make(chan *model.ChangeEvent, 64)
	sub, err := h.feed.Subscribe(chatID, func(event *model.ChangeEvent) {
		select {
		case events <- event:
		default:
			// Slow consumer: drop rather than block; the store remains
			// the source of truth for anything missed.
		}
	})
	if err != nil {
		h.logger.Error("feed subscription failed", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "subscription failed")
		return
	}
	defer sub.Unsubscribe()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"chat_id": chatID,
	})

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("chat_id", chatID))
			return

		case event := <-events:
			sendSSEEvent(w, flusher, "change", event)

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
