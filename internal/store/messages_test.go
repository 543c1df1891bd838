package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/pkg/logger"
)

func newTestStore(t *testing.T) *MessageStore {
	t.Helper()
	s, err := OpenMem(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewMessageStore(s)
}

func TestCreatePlaceholderAndGet(t *testing.T) {
	ms := newTestStore(t)

	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "c1", msg.ChatID)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, "openai/gpt-4o", msg.Model)
	assert.Empty(t, msg.Content)
	assert.False(t, msg.Terminal())
}

func TestGetMissing(t *testing.T) {
	ms := newTestStore(t)

	_, err := ms.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendFragmentAndAssemble(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))

	require.NoError(t, ms.AppendFragment("m1", FieldContent, 0, "Hel"))
	require.NoError(t, ms.AppendFragment("m1", FieldContent, 1, "lo, "))
	require.NoError(t, ms.AppendFragment("m1", FieldContent, 2, "world"))

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", msg.Content.Assemble())
}

func TestFragmentFieldsShareSequenceSpace(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/o3-mini"))

	// Reasoning and content interleave in one monotonic sequence space
	// but land in separate maps.
	require.NoError(t, ms.AppendFragment("m1", FieldReasoning, 0, "think "))
	require.NoError(t, ms.AppendFragment("m1", FieldContent, 1, "answer "))
	require.NoError(t, ms.AppendFragment("m1", FieldReasoning, 2, "more"))
	require.NoError(t, ms.AppendFragment("m1", FieldContent, 3, "text"))

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "think more", msg.Reasoning.Assemble())
	assert.Equal(t, "answer text", msg.Content.Assemble())
	assert.Len(t, msg.Content, 2)
	assert.Len(t, msg.Reasoning, 2)
}

func TestFinalizeSuccess(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))
	require.NoError(t, ms.AppendFragment("m1", FieldContent, 0, "hi"))

	elapsed := int64(1234)
	tokens := 42
	require.NoError(t, ms.Finalize("m1", FinalizeUpdate{TimeMs: &elapsed, Tokens: &tokens}))

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, msg.Finished)
	assert.Nil(t, msg.Aborted)
	require.NotNil(t, msg.TimeMs)
	assert.Equal(t, elapsed, *msg.TimeMs)
	require.NotNil(t, msg.Tokens)
	assert.Equal(t, tokens, *msg.Tokens)
	assert.Equal(t, "hi", msg.Content.Assemble())
}

func TestFinalizeIsTerminal(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))
	require.NoError(t, ms.Finalize("m1", FinalizeUpdate{}))

	// Second terminal write is rejected.
	err := ms.Finalize("m1", FinalizeUpdate{Aborted: true})
	assert.ErrorIs(t, err, ErrFinished)

	// No content mutation after the terminal state.
	err = ms.AppendFragment("m1", FieldContent, 5, "late")
	assert.ErrorIs(t, err, ErrFinished)

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	assert.Nil(t, msg.Aborted)
	assert.Empty(t, msg.Content)
}

func TestFinalizeAbortedTimestampsMatch(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))

	require.NoError(t, ms.Finalize("m1", FinalizeUpdate{Aborted: true}))

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, msg.Finished)
	require.NotNil(t, msg.Aborted)
	assert.Equal(t, *msg.Finished, *msg.Aborted)
	assert.Nil(t, msg.Tokens)
	assert.Nil(t, msg.TimeMs)
}

func TestFinalizeImageFields(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-image-1"))

	require.NoError(t, ms.Finalize("m1", FinalizeUpdate{
		ContentText: "a painting of a fox",
		ResponseID:  "img_123",
		FileIDs:     []string{"f1.png", "f2.png"},
	}))

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "a painting of a fox", msg.Content.Assemble())
	assert.Equal(t, "img_123", msg.ResponseID)
	assert.Equal(t, []string{"f1.png", "f2.png"}, msg.FileIDs)
}

func TestAborted(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))

	aborted, err := ms.Aborted("m1")
	require.NoError(t, err)
	assert.False(t, aborted)

	require.NoError(t, ms.Finalize("m1", FinalizeUpdate{Aborted: true}))

	aborted, err = ms.Aborted("m1")
	require.NoError(t, err)
	assert.True(t, aborted)
}

func TestSetChatTitleCreatesChat(t *testing.T) {
	ms := newTestStore(t)

	require.NoError(t, ms.SetChatTitle("c1", "First chat"))

	var chat model.Chat
	require.NoError(t, ms.store.Get(KindChat, "c1", &chat))
	assert.Equal(t, "First chat", chat.Title)

	// Merging over an existing chat keeps the record.
	require.NoError(t, ms.SetChatTitle("c1", "Renamed"))
	require.NoError(t, ms.store.Get(KindChat, "c1", &chat))
	assert.Equal(t, "Renamed", chat.Title)
}

func TestFileRecords(t *testing.T) {
	ms := newTestStore(t)

	require.NoError(t, ms.PutFile(&model.FileRecord{
		ID:        "f1.png",
		Key:       "f1.png",
		MessageID: "m1",
		MIMEType:  "image/png",
		Size:      128,
	}))

	file, err := ms.GetFile("f1.png")
	require.NoError(t, err)
	assert.Equal(t, "m1", file.MessageID)

	require.NoError(t, ms.DeleteFile("f1.png"))
	_, err = ms.GetFile("f1.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeConcurrentDisjointFields(t *testing.T) {
	ms := newTestStore(t)
	require.NoError(t, ms.CreatePlaceholder("m1", "c1", "openai/gpt-4o"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i += 2 {
			_ = ms.AppendFragment("m1", FieldContent, i, "a")
		}
	}()
	for i := 1; i < 50; i += 2 {
		_ = ms.AppendFragment("m1", FieldReasoning, i, "b")
	}
	<-done

	msg, err := ms.Get("m1")
	require.NoError(t, err)
	assert.Len(t, msg.Content, 25)
	assert.Len(t, msg.Reasoning, 25)
}
