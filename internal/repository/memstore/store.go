package memstore

import (
	"context"
	"encoding/json"

	"github.com/patrickmn/go-cache"

	"github.com/cropcare/reminder-api/internal/model"
)

// Store is an in-process ReminderStore for tests and single-node deployments
// that run without Redis. It keeps the same single-blob semantics as the
// Redis store: one JSON array under one key, full overwrite on save.
type Store struct {
	cache *cache.Cache
	key   string
}

func NewStore(key string) *Store {
	return &Store{
		cache: cache.New(cache.NoExpiration, cache.NoExpiration),
		key:   key,
	}
}

func (s *Store) Load(ctx context.Context) ([]*model.Reminder, error) {
	raw, found := s.cache.Get(s.key)
	if !found {
		return []*model.Reminder{}, nil
	}

	blob, ok := raw.([]byte)
	if !ok {
		return []*model.Reminder{}, nil
	}

	var reminders []*model.Reminder
	if err := json.Unmarshal(blob, &reminders); err != nil {
		// Corrupt blob starts the collection over, matching the Redis store.
		return []*model.Reminder{}, nil
	}
	if reminders == nil {
		reminders = []*model.Reminder{}
	}
	return reminders, nil
}

func (s *Store) Save(ctx context.Context, reminders []*model.Reminder) error {
	blob, err := json.Marshal(reminders)
	if err != nil {
		return err
	}
	s.cache.Set(s.key, blob, cache.NoExpiration)
	return nil
}

// SetRaw overwrites the stored blob verbatim. Used by tests to simulate
// corrupt or hand-written state.
func (s *Store) SetRaw(blob []byte) {
	s.cache.Set(s.key, blob, cache.NoExpiration)
}

// Raw returns the stored blob, if any.
func (s *Store) Raw() ([]byte, bool) {
	raw, found := s.cache.Get(s.key)
	if !found {
		return nil, false
	}
	blob, ok := raw.([]byte)
	return blob, ok
}
