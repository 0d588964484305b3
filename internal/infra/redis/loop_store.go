package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/cycler/internal/core/config"
)

// DefaultLoopKey holds the loop record when no key is configured.
const DefaultLoopKey = "cycler:loop-config"

// LoopStore implements config.LoopStore with a single Redis string key.
type LoopStore struct {
	rdb *redis.Client
	key string
}

var _ config.LoopStore = (*LoopStore)(nil)

// NewLoopStore creates a Redis-backed loop record store.
func NewLoopStore(client *Client, key string) *LoopStore {
	if key == "" {
		key = DefaultLoopKey
	}
	return &LoopStore{rdb: client.rdb, key: key}
}

// Load implements config.LoopStore.
func (s *LoopStore) Load(ctx context.Context) (config.LoopConfig, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return config.DefaultLoopConfig(), nil
	}
	if err != nil {
		return config.LoopConfig{}, fmt.Errorf("get loop config: %w", err)
	}
	return config.DecodeLoopConfig(data)
}

// Save implements config.LoopStore.
func (s *LoopStore) Save(ctx context.Context, cfg config.LoopConfig) error {
	data, err := config.EncodeLoopConfig(cfg)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set loop config: %w", err)
	}
	return nil
}
