// Package blob stores generated binary assets.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists binary assets under opaque keys.
type Store interface {
	// Put writes data under key and returns the number of bytes stored.
	Put(ctx context.Context, key string, data []byte) (int64, error)

	// Delete removes the asset for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps assets as flat files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	// Keys are opaque ids; reject anything that could escape the root.
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// Put writes data under key.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return int64(len(data)), nil
}

// Delete removes the asset for key.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}
