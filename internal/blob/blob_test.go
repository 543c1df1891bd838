package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndDelete(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	size, err := s.Put(context.Background(), "a1b2.png", []byte("image-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	data, err := os.ReadFile(filepath.Join(s.root, "a1b2.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	require.NoError(t, s.Delete(context.Background(), "a1b2.png"))
	_, err = os.Stat(filepath.Join(s.root, "a1b2.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteAbsentKey(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, s.Delete(context.Background(), "never-written.png"))
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", `a\b`, "..", "x..y"} {
		_, err := s.Put(context.Background(), key, []byte("x"))
		assert.Error(t, err, "key %q must be rejected", key)
	}
}
