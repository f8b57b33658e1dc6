// Package ratelimit реализует ограничение частоты запросов фиксированным окном.
//
// Limiter хранит счётчики в памяти процесса; RedisStore делит их между
// несколькими инстансами через redis. Оба реализуют Store.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Rule не больше Limit запросов за Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result итог проверки одного запроса.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds время ожидания в секундах с округлением вверх, не меньше 1.
func (r Result) RetryAfterSeconds() int {
	s := int(math.Ceil(r.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Store учитывает запрос по ключу и решает, пропускать ли его.
type Store interface {
	Allow(ctx context.Context, key string, rule Rule) (Result, error)
}

// Key собирает ключ счётчика из имени операции и адреса клиента.
func Key(operation, clientIP string) string {
	return operation + ":" + clientIP
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter хранилище счётчиков в памяти. Безопасен для конкурентного использования.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New создаёт пустой Limiter.
func New() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow учитывает запрос. Отсутствующий или истёкший счётчик открывает новое окно.
func (l *Limiter) Allow(_ context.Context, key string, rule Rule) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{resetAt: now.Add(rule.Window)}
		l.entries[key] = e
	}
	e.count++

	return decide(e.count, rule.Limit, now, e.resetAt), nil
}

func decide(count, limit int, now, resetAt time.Time) Result {
	if count > limit {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}
	return Result{
		Allowed:   true,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}
}

// Sweep удаляет истёкшие счётчики и возвращает их количество.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len число живых счётчиков.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run периодически чистит истёкшие счётчики, пока не отменён ctx.
func (l *Limiter) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
