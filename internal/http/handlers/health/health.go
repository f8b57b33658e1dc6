// Package health отдаёт состояние сервиса для балансировщика и мониторинга.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
)

const pingTimeout = 3 * time.Second

// Pinger проверка доступности зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency состояние одной зависимости.
type Dependency struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report тело ответа health-check.
type Report struct {
	Status   string      `json:"status"`
	Database Dependency  `json:"database"`
	Redis    *Dependency `json:"redis,omitempty"`
}

type Handler struct {
	log   *slog.Logger
	db    Pinger
	redis Pinger
}

// New создаёт handler. redis может быть nil, если redis не настроен;
// его состояние в итоговый статус не входит.
func New(log *slog.Logger, db Pinger, redis Pinger) *Handler {
	return &Handler{
		log:   log,
		db:    db,
		redis: redis,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния сервиса
// @Description Пингует базу данных и возвращает задержку. 503, если база недоступна.
// @Tags health
// @Produce json
// @Success 200 {object} Report
// @Failure 503 {object} Report
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	w.Header().Set("Cache-Control", "no-cache, no-store")

	report := Report{Status: "healthy"}
	db, err := probe(r.Context(), h.db)
	report.Database = db
	if err != nil {
		log.Error("database ping failed", sl.Err(err))
		report.Status = "unhealthy"
	}
	if h.redis != nil {
		rd, err := probe(r.Context(), h.redis)
		if err != nil {
			log.Warn("redis ping failed", sl.Err(err))
		}
		report.Redis = &rd
	}

	if report.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	render.JSON(w, r, report)
}

func probe(ctx context.Context, p Pinger) (Dependency, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	d := Dependency{Status: "up", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		d.Status = "down"
	}
	return d, err
}
