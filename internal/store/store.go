// Package store implements the record store consumed by the generation
// pipeline: point lookups by id, atomic merge of nested partial fields,
// and deletes, over a Pebble keyspace. Every successful mutation is
// mirrored onto the reactive change feed.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/model"
	"github.com/driftchat/backend/pkg/logger"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Notifier receives change events for every successful mutation. A nil
// notifier disables the feed; persistence never depends on it.
type Notifier interface {
	Publish(event *model.ChangeEvent) error
}

// Store is a Pebble-backed JSON record store. Records are keyed
// "<kind>:<id>". Merges are read-modify-write cycles serialized by an
// internal mutex, which makes each merge atomic with respect to other
// writers in this process.
type Store struct {
	db       *pebble.DB
	mu       sync.Mutex
	notifier Notifier
	logger   *logger.Logger
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string, notifier Notifier, log *logger.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	log.Info("record store opened", zap.String("path", path))
	return &Store{db: db, notifier: notifier, logger: log}, nil
}

// OpenMem opens an in-memory store. Useful in tests.
func OpenMem(notifier Notifier, log *logger.Logger) (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
	}
	return &Store{db: db, notifier: notifier, logger: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ready reports whether the store is usable.
func (s *Store) Ready() bool {
	return s.db != nil
}

func recordKey(kind, id string) []byte {
	return []byte(kind + ":" + id)
}

// Get loads the record into v. Returns ErrNotFound when absent.
func (s *Store) Get(kind, id string, v any) error {
	data, closer, err := s.db.Get(recordKey(kind, id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read record %s:%s: %w", kind, id, err)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode record %s:%s: %w", kind, id, err)
	}
	return nil
}

// Put writes a full record, replacing any existing value.
func (s *Store) Put(kind, id, chatID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s:%s: %w", kind, id, err)
	}

	s.mu.Lock()
	err = s.db.Set(recordKey(kind, id), data, pebble.Sync)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write record %s:%s: %w", kind, id, err)
	}

	s.notify(&model.ChangeEvent{
		Kind:      kind,
		ID:        id,
		ChatID:    chatID,
		Type:      model.ChangeCreated,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Merge applies a partial nested-field update to an existing record. Keys
// present in patch overwrite the stored value; nested maps merge key by
// key. The cycle runs under the store mutex, so concurrent merges to the
// same record never lose disjoint fields.
func (s *Store) Merge(kind, id, chatID string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := map[string]any{}
	data, closer, err := s.db.Get(recordKey(kind, id))
	switch {
	case err == nil:
		uerr := json.Unmarshal(data, &current)
		closer.Close()
		if uerr != nil {
			return fmt.Errorf("failed to decode record %s:%s: %w", kind, id, uerr)
		}
	case errors.Is(err, pebble.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("failed to read record %s:%s: %w", kind, id, err)
	}

	deepMerge(current, patch)

	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s:%s: %w", kind, id, err)
	}
	if err := s.db.Set(recordKey(kind, id), merged, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write record %s:%s: %w", kind, id, err)
	}

	s.notify(&model.ChangeEvent{
		Kind:      kind,
		ID:        id,
		ChatID:    chatID,
		Type:      model.ChangeMerged,
		Patch:     patch,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Delete removes a record. Deleting an absent record is not an error.
func (s *Store) Delete(kind, id, chatID string) error {
	s.mu.Lock()
	err := s.db.Delete(recordKey(kind, id), pebble.Sync)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to delete record %s:%s: %w", kind, id, err)
	}

	s.notify(&model.ChangeEvent{
		Kind:      kind,
		ID:        id,
		ChatID:    chatID,
		Type:      model.ChangeDeleted,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (s *Store) notify(event *model.ChangeEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(event); err != nil {
		s.logger.Warn("change feed publish failed",
			zap.String("kind", event.Kind),
			zap.String("id", event.ID),
			zap.Error(err))
	}
}

// deepMerge merges src into dst in place. Nested maps merge recursively,
// everything else overwrites.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
