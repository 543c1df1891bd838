package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/model"
)

const (
	// SubjectPrefix is the prefix for all change-feed subjects.
	SubjectPrefix = "chat"
)

// Feed publishes record change events so that reactive subscribers (SSE
// handlers, other instances) observe store mutations as they land.
type Feed struct {
	client *Client
}

// NewFeed creates a change feed over an established connection.
func NewFeed(client *Client) *Feed {
	return &Feed{client: client}
}

// ChangeSubject returns the subject for one record's change events.
func ChangeSubject(chatID, kind, id string) string {
	if chatID == "" {
		chatID = "_"
	}
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, chatID, kind, id)
}

// ChatFilter returns the wildcard subject covering all changes in a chat.
func ChatFilter(chatID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, chatID)
}

// Publish emits a change event. Delivery is best-effort: the store of
// record is pebble, the feed only accelerates reactive consumers.
func (f *Feed) Publish(event *model.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	subject := ChangeSubject(event.ChatID, event.Kind, event.ID)
	if err := f.client.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe delivers every change event for a chat to handler until the
// returned subscription is unsubscribed. Malformed payloads are dropped.
func (f *Feed) Subscribe(chatID string, handler func(*model.ChangeEvent)) (*nats.Subscription, error) {
	sub, err := f.client.Conn().Subscribe(ChatFilter(chatID), func(msg *nats.Msg) {
		var event model.ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			f.client.logger.Warn("dropping malformed change event",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to chat feed: %w", err)
	}
	return sub, nil
}
