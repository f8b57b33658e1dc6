// Package activity отдаёт журнал действий пользователя постранично.
package activity

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Page страница журнала.
type Page struct {
	Entries []*models.AuditEntry `json:"entries"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
}

// Service бизнес-логика журнала.
type Service interface {
	Activity(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, int, error)
}

// Handler обработчик журнала.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Журнал действий
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Param page query int false "Номер страницы, с 1"
// @Param limit query int false "Размер страницы, до 100"
// @Param action query string false "Фильтр по действию"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /activity [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.activity"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	limit := min(positiveInt(q.Get("limit"), defaultLimit), maxLimit)

	entries, total, err := h.service.Activity(r.Context(), models.AuditFilter{
		UserID: userID,
		Action: q.Get("action"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		log.Error("failed to list activity", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}

	render.JSON(w, r, response.StatusOKWithData(Page{
		Entries: entries,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}))
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
