package generate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/pkg/logger"
)

const titlePrompt = "Generate a concise title (at most six words) for a chat that starts " +
	"with the following message. Respond with the title only, no quotes."

const maxTitleLength = 120

// TitleGenerator produces a short chat title from the first user message.
// It is fire-and-forget: failures are logged and never surfaced, a missing
// title must not block or invalidate the chat.
type TitleGenerator struct {
	client   provider.Client
	modelID  string
	messages MessageWriter
	logger   *logger.Logger
}

// NewTitleGenerator creates a title generator bound to a lightweight model.
func NewTitleGenerator(client provider.Client, modelID string, messages MessageWriter, log *logger.Logger) *TitleGenerator {
	return &TitleGenerator{
		client:   client,
		modelID:  modelID,
		messages: messages,
		logger:   log,
	}
}

// Generate requests one short completion and writes the result into the
// chat's title field. No retries.
func (t *TitleGenerator) Generate(ctx context.Context, chatID, firstUserMessage string) {
	log := t.logger.With(zap.String("chat_id", chatID))

	if t.client == nil {
		log.Debug("title generation disabled, no client configured")
		return
	}

	resp, err := t.client.Complete(ctx, &provider.CompletionRequest{
		Model: t.modelID,
		Messages: []provider.ChatMessage{
			{Role: "system", Content: titlePrompt},
			{Role: "user", Content: firstUserMessage},
		},
		MaxTokens: 32,
	})
	if err != nil {
		log.Warn("title generation failed", zap.Error(err))
		return
	}

	title := sanitizeTitle(resp.Text)
	if title == "" {
		log.Warn("title generation returned empty text")
		return
	}

	if err := t.messages.SetChatTitle(chatID, title); err != nil {
		log.Warn("title write failed", zap.Error(err))
		return
	}
	log.Info("chat title generated", zap.String("title", title))
}

func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}
