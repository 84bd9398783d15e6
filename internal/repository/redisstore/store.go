package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cropcare/reminder-api/internal/model"
	"github.com/cropcare/reminder-api/pkg/logger"
	"github.com/cropcare/reminder-api/pkg/metrics"
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Store keeps the reminder collection as a single JSON array under one key.
type Store struct {
	client  *redis.Client
	key     string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewStore(client *redis.Client, key string, log *logger.Logger, m *metrics.Metrics) *Store {
	return &Store{
		client:  client,
		key:     key,
		logger:  log,
		metrics: m,
	}
}

// Load reads the whole collection. A missing key or an unreadable blob both
// yield an empty collection; corrupt state is discarded, not surfaced.
func (s *Store) Load(ctx context.Context) ([]*model.Reminder, error) {
	start := time.Now()

	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.observe("load", "success", start)
			return []*model.Reminder{}, nil
		}
		s.observe("load", "error", start)
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}

	var reminders []*model.Reminder
	if err := json.Unmarshal(raw, &reminders); err != nil {
		s.logger.Warn(err, "discarding corrupt reminder blob", "key", s.key)
		s.observe("load", "corrupt", start)
		return []*model.Reminder{}, nil
	}
	if reminders == nil {
		reminders = []*model.Reminder{}
	}

	s.observe("load", "success", start)
	return reminders, nil
}

// Save overwrites the whole collection.
func (s *Store) Save(ctx context.Context, reminders []*model.Reminder) error {
	start := time.Now()

	payload, err := json.Marshal(reminders)
	if err != nil {
		s.observe("save", "error", start)
		return fmt.Errorf("failed to marshal reminders: %w", err)
	}

	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		s.observe("save", "error", start)
		return fmt.Errorf("failed to save reminders: %w", err)
	}

	s.observe("save", "success", start)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) observe(op, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreOperations.WithLabelValues(op, status).Inc()
	s.metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
