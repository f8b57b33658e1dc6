package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/metrics"
)

// TooManyRequests текст ответа при превышении лимита.
const TooManyRequests = "too many requests, please try again later"

// RateLimit ограничивает операцию op по адресу клиента правилом rule.
// При отказе отвечает 429 с заголовком Retry-After. Если хранилище счётчиков
// недоступно, запрос пропускается.
func RateLimit(log *slog.Logger, store ratelimit.Store, op string, rule ratelimit.Rule, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ratelimit.ClientIP(r)
			res, err := store.Allow(r.Context(), ratelimit.Key(op, ip), rule)
			if err != nil {
				log.Error("rate limit store unavailable, allowing request",
					slog.String("operation", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				log.Warn("rate limit exceeded",
					slog.String("operation", op),
					slog.String("ip", ip),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				m.Limited(op)
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error(TooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserThrottle token bucket на каждого аутентифицированного пользователя.
type UserThrottle struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewUserThrottle создаёт ограничитель perMinute запросов в минуту с запасом burst.
// Пользователи, не делавшие запросов дольше idle, забываются при следующем Sweep.
func NewUserThrottle(log *slog.Logger, perMinute, burst int, idle time.Duration, m *metrics.Metrics) *UserThrottle {
	return &UserThrottle{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		log:      log,
		metrics:  m,
	}
}

func (t *UserThrottle) get(userID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.visitors[userID] = v
	}
	v.lastSeen = t.now()
	return v.limiter
}

// Sweep удаляет давно неактивных пользователей и возвращает их число.
func (t *UserThrottle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.idle)
	removed := 0
	for id, v := range t.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(t.visitors, id)
			removed++
		}
	}
	return removed
}

// Run периодически вызывает Sweep, пока не отменён ctx.
func (t *UserThrottle) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Middleware применяет лимит к пользователю из контекста. Запросы без
// пользователя пропускаются: их отсекает JWTMiddleware.
func (t *UserThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFrom(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		lim := t.get(userID)
		if !lim.AllowN(t.now(), 1) {
			t.log.Warn("user throttled",
				slog.String("user_id", userID),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			t.metrics.Limited("api")
			retry := time.Duration(float64(time.Second) / float64(t.limit))
			w.Header().Set("Retry-After", strconv.Itoa(ratelimit.Result{RetryAfter: retry}.RetryAfterSeconds()))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error(TooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}
