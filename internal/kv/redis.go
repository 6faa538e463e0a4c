package kv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

const maxTxRetries = 10

// unlockScript deletes the lock only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("kv: redis ping %s: %w", opts.Addr, err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "integriguard:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) k(key string) string { return s.prefix + key }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.k(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrNotFound
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.k(key), val, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.k(k)
	}
	return s.rdb.Del(ctx, full...).Err()
}

// Update uses WATCH/MULTI so concurrent writers retry instead of
// overwriting each other.
func (s *RedisStore) Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	full := s.k(key)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, full).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, full)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("kv: update %s: %w", key, common.ErrConflict)
}

func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := s.k("lock:" + key)
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("kv: acquire %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		deleted, err := unlockScript.Run(rctx, s.rdb, []string{full}, token).Int()
		switch {
		case err != nil:
			log.Printf("kv: release lock %s: %v", key, err)
		case deleted == 0:
			log.Printf("kv: lock %s expired before release", key)
		}
	}
	return release, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
