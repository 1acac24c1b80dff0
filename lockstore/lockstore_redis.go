package lockstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisLockPrefix string = "lock/"

type RedisLockStore struct {
	Client *redis.Client
}

var _ LockStore = (*RedisLockStore)(nil)

func NewRedisLockStore(redisURL string) (*RedisLockStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	rls := RedisLockStore{
		Client: rdb,
	}
	return &rls, nil
}

func (s *RedisLockStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, redisLockPrefix+key, "", ttl).Result()
}

func (s *RedisLockStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	return s.Client.Set(ctx, redisLockPrefix+key, "", ttl).Err()
}

func (s *RedisLockStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, redisLockPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisLockStore) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	// bump the counter and refresh its window in a single round-trip
	multi := s.Client.Pipeline()
	incr := multi.IncrBy(ctx, redisLockPrefix+key, delta)
	multi.Expire(ctx, redisLockPrefix+key, ttl)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisLockStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, redisLockPrefix+key).Err()
}
