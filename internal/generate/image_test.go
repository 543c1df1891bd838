package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/backend/internal/blob"
	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/internal/registry"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
)

type fakeImageGen struct {
	result *provider.ImageResult
	err    error
	calls  int
}

func (f *fakeImageGen) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.ImageResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newImageCoordinator(t *testing.T) (*ImageCoordinator, *store.MessageStore) {
	t.Helper()
	s, err := store.OpenMem(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	messages := store.NewMessageStore(s)
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewImageCoordinator(registry.New(), messages, blobs, logger.NewNop()), messages
}

func userMsg(content string) model.InboundMessage {
	return model.InboundMessage{Role: model.RoleUser, Content: content}
}

func TestImageRunSuccess(t *testing.T) {
	coord, messages := newImageCoordinator(t)
	require.NoError(t, messages.CreatePlaceholder("m1", "c1", "openai/gpt-image-1"))

	gen := &fakeImageGen{result: &provider.ImageResult{
		ResponseID: "img_42",
		Text:       "a fox in watercolor",
		Assets: []provider.Asset{
			{Data: []byte("png-bytes-1"), MIMEType: "image/png"},
			{Data: []byte("png-bytes-2"), MIMEType: "image/png"},
		},
	}}

	err := coord.Run(context.Background(), gen, ImageParams{
		Messages:  []model.InboundMessage{userMsg("draw a fox in watercolor")},
		MessageID: "m1",
		ChatID:    "c1",
		ModelID:   "openai/gpt-image-1",
	})
	require.NoError(t, err)

	msg, err := messages.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, msg.Finished)
	assert.Nil(t, msg.Aborted)
	assert.Equal(t, "img_42", msg.ResponseID)
	assert.Equal(t, "a fox in watercolor", msg.Content.Assemble())
	require.Len(t, msg.FileIDs, 2)

	for _, key := range msg.FileIDs {
		file, err := messages.GetFile(key)
		require.NoError(t, err)
		assert.Equal(t, "m1", file.MessageID)
		assert.Equal(t, "image/png", file.MIMEType)
		assert.Equal(t, int64(len("png-bytes-1")), file.Size)
	}
}

func TestImageRunRejectsUnsupportedInput(t *testing.T) {
	tests := []struct {
		name     string
		messages []model.InboundMessage
	}{
		{"empty list", nil},
		{"latest not user", []model.InboundMessage{
			userMsg("draw something"),
			{Role: model.RoleAssistant, Content: "here you go"},
		}},
		{"raw file parts", []model.InboundMessage{
			{Role: model.RoleUser, Content: "edit this", FileIDs: []string{"f1.png"}},
		}},
		{"empty content", []model.InboundMessage{userMsg("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, messages := newImageCoordinator(t)
			require.NoError(t, messages.CreatePlaceholder("m1", "c1", "openai/gpt-image-1"))

			gen := &fakeImageGen{}
			err := coord.Run(context.Background(), gen, ImageParams{
				Messages:  tt.messages,
				MessageID: "m1",
				ChatID:    "c1",
				ModelID:   "openai/gpt-image-1",
			})

			var unsupported *UnsupportedInputError
			require.ErrorAs(t, err, &unsupported)
			assert.Zero(t, gen.calls, "provider must not be called for rejected input")

			msg, err := messages.Get("m1")
			require.NoError(t, err)
			require.NotNil(t, msg.Finished)
			require.NotNil(t, msg.Aborted)
			assert.Equal(t, *msg.Finished, *msg.Aborted)
			assert.Empty(t, msg.FileIDs)
		})
	}
}

func TestImageRunProviderFailure(t *testing.T) {
	coord, messages := newImageCoordinator(t)
	require.NoError(t, messages.CreatePlaceholder("m1", "c1", "openai/gpt-image-1"))

	gen := &fakeImageGen{err: errors.New("content policy violation")}
	err := coord.Run(context.Background(), gen, ImageParams{
		Messages:  []model.InboundMessage{userMsg("draw something")},
		MessageID: "m1",
		ChatID:    "c1",
		ModelID:   "openai/gpt-image-1",
	})
	require.Error(t, err)

	msg, err := messages.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, msg.Finished)
	require.NotNil(t, msg.Aborted)
	assert.Empty(t, msg.FileIDs)
}

func TestImageRunSkipsFinalizeWhenAlreadyAborted(t *testing.T) {
	coord, messages := newImageCoordinator(t)
	require.NoError(t, messages.CreatePlaceholder("m1", "c1", "openai/gpt-image-1"))

	// Another actor cancelled while the provider call was in flight.
	require.NoError(t, messages.Finalize("m1", store.FinalizeUpdate{Aborted: true}))
	before, err := messages.Get("m1")
	require.NoError(t, err)

	gen := &fakeImageGen{err: errors.New("request cancelled")}
	runErr := coord.Run(context.Background(), gen, ImageParams{
		Messages:  []model.InboundMessage{userMsg("draw something")},
		MessageID: "m1",
		ChatID:    "c1",
		ModelID:   "openai/gpt-image-1",
	})
	require.Error(t, runErr)

	after, err := messages.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, *before.Finished, *after.Finished)
	assert.Equal(t, *before.Aborted, *after.Aborted)
}

func TestLatestUserPrompt(t *testing.T) {
	prompt, err := latestUserPrompt([]model.InboundMessage{
		{Role: model.RoleAssistant, Content: "previous reply"},
		userMsg("a red bicycle"),
	})
	require.NoError(t, err)
	assert.Equal(t, "a red bicycle", prompt)
}
