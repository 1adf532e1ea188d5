package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idgate/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store is the time-bounded key/value store backing OTP codes, resend
// cooldowns, verification flags, consumed link-token IDs, and the refresh
// revocation ledger. Per-key operations are atomic at the redis level; the
// engine needs no in-process locking on top of it.
//
// Contract notes:
//   - Set always clobbers any previous value for the key.
//   - SetNX is atomic add-if-absent and reports whether the key was added.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store set %s: %w", key, err)
	}
	return nil
}

// Get returns the value at key, or domain.ErrNotFound when the key is absent
// or its TTL has elapsed.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store get %s: %w", key, err)
	}
	return v, nil
}

// GetDel atomically reads and deletes the key. Absent keys return
// domain.ErrNotFound.
func (s *Store) GetDel(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store getdel %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store delete %s: %w", key, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key, or zero when the key is absent
// or has no expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store ttl %s: %w", key, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// SetNX sets the key only if absent and reports whether it was added.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	added, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store setnx %s: %w", key, err)
	}
	return added, nil
}
