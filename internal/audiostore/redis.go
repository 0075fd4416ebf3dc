package audiostore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "intervoice:audio:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(ctx context.Context, opts Options) (*redisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &redisStore{client: client, ttl: opts.TTL}, nil
}

func (s *redisStore) Put(ctx context.Context, id string, clip Clip) error {
	key := redisKeyPrefix + id
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "data", clip.Data, "content_type", clip.ContentType)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store audio clip: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (Clip, error) {
	vals, err := s.client.HGetAll(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return Clip{}, fmt.Errorf("read audio clip: %w", err)
	}
	if len(vals) == 0 {
		return Clip{}, ErrNotFound
	}
	return Clip{Data: []byte(vals["data"]), ContentType: vals["content_type"]}, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
