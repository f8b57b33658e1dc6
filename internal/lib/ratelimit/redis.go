package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore фиксированное окно поверх INCR/PEXPIRE, общее для всех инстансов.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisStore создаёт хранилище; ключи получают префикс "ratelimit:".
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Allow учитывает запрос. Окно открывается первым запросом и живёт rule.Window.
func (s *RedisStore) Allow(ctx context.Context, key string, rule Rule) (Result, error) {
	const op = "ratelimit.RedisStore.Allow"
	key = s.prefix + key

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if count == 1 {
		if err = s.client.PExpire(ctx, key, rule.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if ttl < 0 {
		// ключ без TTL остался от прерванного запроса
		if err = s.client.PExpire(ctx, key, rule.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		ttl = rule.Window
	}

	now := s.now()
	return decide(int(count), rule.Limit, now, now.Add(ttl)), nil
}
