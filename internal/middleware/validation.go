package middleware

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/driftchat/backend/internal/model"
)

// ValidationError rejects a malformed request body before any generation
// side effects occur.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateGenerateRequest validates the body of POST /api/model against
// the closed role, model, and reasoning sets.
func ValidateGenerateRequest(req *model.GenerateRequest) error {
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "cannot be empty"}
	}
	for i, msg := range req.Messages {
		if !model.ValidRole(msg.Role) {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Reason: "unknown role"}
		}
		if err := ValidateMessageContent(msg.Content); err != nil {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Reason: err.Error()}
		}
	}

	cfg := req.Config
	if _, ok := model.LookupModel(cfg.Model); !ok {
		return &ValidationError{Field: "config.model", Reason: "unknown model"}
	}
	if !model.ValidReasoningEffort(cfg.Reasoning) {
		return &ValidationError{Field: "config.reasoning", Reason: "must be one of off, low, medium, high"}
	}
	if err := ValidateID(cfg.ChatID); err != nil {
		return &ValidationError{Field: "config.chatId", Reason: err.Error()}
	}
	if err := ValidateID(cfg.MessageID); err != nil {
		return &ValidationError{Field: "config.messageId", Reason: err.Error()}
	}
	if cfg.UserID == "" {
		return &ValidationError{Field: "config.userId", Reason: "cannot be empty"}
	}
	return nil
}

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) > 100000 { // ~100KB limit
		return fmt.Errorf("exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a chat or message identifier.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("must be a UUID")
	}
	return nil
}
