// Package keys resolves the effective provider API key for a request:
// an active, integrity-verified per-user key when one exists, the
// deployment's global key otherwise.
package keys

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
)

// ErrBadSecret is returned when the configured encryption secret cannot
// derive a cipher.
var ErrBadSecret = errors.New("key secret must be 32 bytes")

// Resolver resolves provider API keys.
type Resolver struct {
	store      *store.Store
	secret     []byte
	globalKeys map[string]string
	logger     *logger.Logger
}

// NewResolver creates a resolver. globalKeys maps provider name to the
// deployment-wide fallback key. secret is the 32-byte symmetric key that
// user keys are sealed with; empty disables per-user keys entirely.
func NewResolver(s *store.Store, secret string, globalKeys map[string]string, log *logger.Logger) (*Resolver, error) {
	if secret != "" && len(secret) != chacha20poly1305.KeySize {
		return nil, ErrBadSecret
	}
	return &Resolver{
		store:      s,
		secret:     []byte(secret),
		globalKeys: globalKeys,
		logger:     log,
	}, nil
}

// Resolve returns the effective API key for userID and provider. The
// per-user key is used only when it is present, active, decrypts cleanly,
// and its plaintext matches the stored integrity hash; every other
// condition falls back to the global key without failing the request.
func (r *Resolver) Resolve(userID, providerName string) (string, error) {
	global := r.globalKeys[providerName]

	if userID == "" || len(r.secret) == 0 {
		return r.requireKey(global, providerName)
	}

	var rec model.APIKey
	err := r.store.Get("apikey", userID+":"+providerName, &rec)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("user key lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return r.requireKey(global, providerName)
	}
	if !rec.Active {
		return r.requireKey(global, providerName)
	}

	plaintext, err := r.open(rec.Ciphertext)
	if err != nil {
		r.logger.Warn("user key decryption failed, falling back to global key",
			zap.String("user_id", userID), zap.String("provider", providerName), zap.Error(err))
		return r.requireKey(global, providerName)
	}

	digest := sha256.Sum256(plaintext)
	if hex.EncodeToString(digest[:]) != rec.Hash {
		r.logger.Warn("user key integrity mismatch, falling back to global key",
			zap.String("user_id", userID), zap.String("provider", providerName))
		return r.requireKey(global, providerName)
	}

	return string(plaintext), nil
}

func (r *Resolver) requireKey(key, providerName string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("no API key configured for provider %s", providerName)
	}
	return key, nil
}

// Seal encrypts a plaintext key for storage and returns the nonce-prefixed
// ciphertext (base64) together with the integrity hash.
func (r *Resolver) Seal(plaintext string, nonce []byte) (ciphertext, hash string, err error) {
	aead, err := chacha20poly1305.New(r.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to build cipher: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return "", "", fmt.Errorf("nonce must be %d bytes", aead.NonceSize())
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	digest := sha256.Sum256([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(sealed), hex.EncodeToString(digest[:]), nil
}

func (r *Resolver) open(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.New(r.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}
