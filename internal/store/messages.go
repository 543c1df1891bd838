package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/driftchat/backend/internal/model"
)

// ErrFinished is returned for any mutation attempted after a message has
// reached its terminal state.
var ErrFinished = errors.New("message already finished")

// FragmentField selects which fragment map a streamed delta lands in.
type FragmentField string

const (
	FieldContent   FragmentField = "content"
	FieldReasoning FragmentField = "reasoning"
)

// KindMessage is the record kind for messages.
const KindMessage = "message"

// KindChat is the record kind for chats.
const KindChat = "chat"

// KindFile is the record kind for asset records.
const KindFile = "file"

// MessageStore wraps the record store with message semantics: fragment
// appends, terminal-state enforcement, and the durable abort flag.
type MessageStore struct {
	store *Store
}

// NewMessageStore creates a message store over s.
func NewMessageStore(s *Store) *MessageStore {
	return &MessageStore{store: s}
}

// CreatePlaceholder writes the empty assistant message that a generation
// will stream into.
func (m *MessageStore) CreatePlaceholder(id, chatID, modelID string) error {
	msg := &model.Message{
		ID:        id,
		ChatID:    chatID,
		Role:      model.RoleAssistant,
		Model:     modelID,
		Content:   model.Fragments{},
		Reasoning: model.Fragments{},
		CreatedAt: time.Now().UTC(),
	}
	return m.store.Put(KindMessage, id, chatID, msg)
}

// Get loads a message by id.
func (m *MessageStore) Get(id string) (*model.Message, error) {
	var msg model.Message
	if err := m.store.Get(KindMessage, id, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AppendFragment merges one streamed fragment at the given sequence number.
// Returns ErrFinished once the message is terminal; no content mutation is
// permitted after that.
func (m *MessageStore) AppendFragment(id string, field FragmentField, seq int, text string) error {
	msg, err := m.Get(id)
	if err != nil {
		return err
	}
	if msg.Terminal() {
		return ErrFinished
	}

	patch := map[string]any{
		string(field): map[string]any{
			strconv.Itoa(seq): text,
		},
	}
	return m.store.Merge(KindMessage, id, msg.ChatID, patch)
}

// FinalizeUpdate carries the terminal fields of one generation.
type FinalizeUpdate struct {
	Aborted     bool
	TimeMs      *int64
	Tokens      *int
	ResponseID  string
	ContentText string
	FileIDs     []string
}

// Finalize writes the terminal update exactly once. A second attempt
// returns ErrFinished and leaves the record untouched. On the abort path
// the aborted and finished timestamps are identical.
func (m *MessageStore) Finalize(id string, fin FinalizeUpdate) error {
	msg, err := m.Get(id)
	if err != nil {
		return err
	}
	if msg.Terminal() {
		return ErrFinished
	}

	now := time.Now().UTC()
	patch := map[string]any{"finished": now}
	if fin.Aborted {
		patch["aborted"] = now
	}
	if fin.TimeMs != nil {
		patch["time"] = *fin.TimeMs
	}
	if fin.Tokens != nil {
		patch["tokens"] = *fin.Tokens
	}
	if fin.ResponseID != "" {
		patch["responseId"] = fin.ResponseID
	}
	if fin.ContentText != "" {
		patch["content"] = map[string]any{"0": fin.ContentText}
	}
	if len(fin.FileIDs) > 0 {
		patch["files"] = fin.FileIDs
	}

	if err := m.store.Merge(KindMessage, id, msg.ChatID, patch); err != nil {
		return fmt.Errorf("terminal write failed: %w", err)
	}

	m.store.notify(&model.ChangeEvent{
		Kind:      KindMessage,
		ID:        id,
		ChatID:    msg.ChatID,
		Type:      model.ChangeFinished,
		Timestamp: now,
	})
	return nil
}

// Aborted reports whether the durable cancel flag is set.
func (m *MessageStore) Aborted(id string) (bool, error) {
	msg, err := m.Get(id)
	if err != nil {
		return false, err
	}
	return msg.Aborted != nil, nil
}

// SetChatTitle merges a generated title into a chat record, creating the
// record when the chat has not been persisted on this side yet.
func (m *MessageStore) SetChatTitle(chatID, title string) error {
	now := time.Now().UTC()
	err := m.store.Merge(KindChat, chatID, chatID, map[string]any{
		"title":     title,
		"updatedAt": now,
	})
	if errors.Is(err, ErrNotFound) {
		return m.store.Put(KindChat, chatID, chatID, &model.Chat{
			ID:        chatID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return err
}

// PutFile records a stored asset. File records are keyed by blob key so
// the storage API can resolve them without a secondary index.
func (m *MessageStore) PutFile(file *model.FileRecord) error {
	return m.store.Put(KindFile, file.Key, "", file)
}

// GetFile loads an asset record by blob key.
func (m *MessageStore) GetFile(key string) (*model.FileRecord, error) {
	var file model.FileRecord
	if err := m.store.Get(KindFile, key, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFile removes an asset record by blob key.
func (m *MessageStore) DeleteFile(key string) error {
	return m.store.Delete(KindFile, key, "")
}
