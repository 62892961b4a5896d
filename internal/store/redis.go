package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStateStore keeps device state as a JSON value per device key, so
// several receiver instances can share it.
type RedisStateStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStateStore(ctx context.Context, addr string, db int, keyPrefix string) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping failed")
	}
	if keyPrefix == "" {
		keyPrefix = "tracker:state:"
	}
	return &RedisStateStore{client: client, keyPrefix: keyPrefix}, nil
}

func (s *RedisStateStore) LoadState(ctx context.Context, deviceID string) (*DeviceState, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+deviceID).Result()
	if err == redis.Nil {
		return &DeviceState{DeviceID: deviceID, InputMask: -1, LastValidHeading: -1}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get device state")
	}
	var state DeviceState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, errors.Wrap(err, "decode device state")
	}
	return &state, nil
}

func (s *RedisStateStore) SaveState(ctx context.Context, state *DeviceState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode device state")
	}
	if err := s.client.Set(ctx, s.keyPrefix+state.DeviceID, b, 0).Err(); err != nil {
		return errors.Wrap(err, "redis set device state")
	}
	return nil
}

func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
