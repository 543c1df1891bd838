package keys

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newResolver(t *testing.T, globalKeys map[string]string) (*Resolver, *store.Store) {
	t.Helper()
	s, err := store.OpenMem(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r, err := NewResolver(s, testSecret, globalKeys, logger.NewNop())
	require.NoError(t, err)
	return r, s
}

func putUserKey(t *testing.T, r *Resolver, s *store.Store, userID, providerName, plaintext string, active bool) {
	t.Helper()
	ciphertext, hash, err := r.Seal(plaintext, bytes.Repeat([]byte{7}, 12))
	require.NoError(t, err)
	require.NoError(t, s.Put("apikey", userID+":"+providerName, "", &model.APIKey{
		UserID:     userID,
		Provider:   providerName,
		Ciphertext: ciphertext,
		Hash:       hash,
		Active:     active,
		CreatedAt:  time.Now().UTC(),
	}))
}

func TestNewResolverRejectsShortSecret(t *testing.T) {
	s, err := store.OpenMem(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = NewResolver(s, "too-short", nil, logger.NewNop())
	assert.ErrorIs(t, err, ErrBadSecret)
}

func TestResolveUserKey(t *testing.T) {
	r, s := newResolver(t, map[string]string{"openai": "sk-global"})
	putUserKey(t, r, s, "u1", "openai", "sk-user-key", true)

	key, err := r.Resolve("u1", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-user-key", key)
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, r *Resolver, s *store.Store)
	}{
		{"no user key stored", func(t *testing.T, r *Resolver, s *store.Store) {}},
		{"inactive key", func(t *testing.T, r *Resolver, s *store.Store) {
			putUserKey(t, r, s, "u1", "openai", "sk-user-key", false)
		}},
		{"integrity hash mismatch", func(t *testing.T, r *Resolver, s *store.Store) {
			putUserKey(t, r, s, "u1", "openai", "sk-user-key", true)
			require.NoError(t, s.Merge("apikey", "u1:openai", "", map[string]any{
				"hash": strings.Repeat("0", 64),
			}))
		}},
		{"corrupt ciphertext", func(t *testing.T, r *Resolver, s *store.Store) {
			putUserKey(t, r, s, "u1", "openai", "sk-user-key", true)
			require.NoError(t, s.Merge("apikey", "u1:openai", "", map[string]any{
				"ciphertext": "bm90LWEtcmVhbC1jaXBoZXJ0ZXh0LXZhbHVlLWF0LWFsbA==",
			}))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, s := newResolver(t, map[string]string{"openai": "sk-global"})
			tt.setup(t, r, s)

			key, err := r.Resolve("u1", "openai")
			require.NoError(t, err)
			assert.Equal(t, "sk-global", key)
		})
	}
}

func TestResolveNoKeyAnywhere(t *testing.T) {
	r, _ := newResolver(t, nil)

	_, err := r.Resolve("u1", "openai")
	assert.Error(t, err)
}

func TestResolveEmptySecretDisablesUserKeys(t *testing.T) {
	s, err := store.OpenMem(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r, err := NewResolver(s, "", map[string]string{"anthropic": "sk-ant-global"}, logger.NewNop())
	require.NoError(t, err)

	key, err := r.Resolve("u1", "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-global", key)
}
