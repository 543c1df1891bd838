package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/backend/internal/provider"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
)

type titleClient struct {
	text string
	err  error
}

func (c *titleClient) ChatStream(ctx context.Context, req *provider.ChatRequest) (provider.ChatStream, error) {
	return nil, errors.New("not implemented")
}

func (c *titleClient) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Completion, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &provider.Completion{Text: c.text}, nil
}

func (c *titleClient) Name() string { return "title-stub" }

func newTitleStore(t *testing.T) (*store.Store, *store.MessageStore) {
	t.Helper()
	s, err := store.OpenMem(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, store.NewMessageStore(s)
}

func chatTitle(t *testing.T, s *store.Store, chatID string) string {
	t.Helper()
	var chat struct {
		Title string `json:"title"`
	}
	if err := s.Get(store.KindChat, chatID, &chat); err != nil {
		require.ErrorIs(t, err, store.ErrNotFound)
		return ""
	}
	return chat.Title
}

func TestTitleGenerate(t *testing.T) {
	s, messages := newTitleStore(t)

	titles := NewTitleGenerator(&titleClient{text: ` "Trip Planning" `}, "openai/gpt-4o-mini", messages, logger.NewNop())
	titles.Generate(context.Background(), "c1", "help me plan a trip to Kyoto")

	assert.Equal(t, "Trip Planning", chatTitle(t, s, "c1"))
}

func TestTitleGenerateCompletionFailure(t *testing.T) {
	s, messages := newTitleStore(t)

	titles := NewTitleGenerator(&titleClient{err: errors.New("rate limited")}, "openai/gpt-4o-mini", messages, logger.NewNop())
	titles.Generate(context.Background(), "c1", "hello")

	assert.Empty(t, chatTitle(t, s, "c1"))
}

func TestTitleGenerateNilClient(t *testing.T) {
	s, messages := newTitleStore(t)

	titles := NewTitleGenerator(nil, "openai/gpt-4o-mini", messages, logger.NewNop())
	titles.Generate(context.Background(), "c1", "hello")

	assert.Empty(t, chatTitle(t, s, "c1"))
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Plain Title  ", "Plain Title"},
		{`"Quoted"`, "Quoted"},
		{"First line\nsecond line", "First line"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeTitle(tt.in))
	}
}
