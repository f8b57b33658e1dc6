// Package access отдаёт результат проверки доступа к платным функциям.
package access

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Handler обработчик проверки доступа.
type Handler struct {
	log     *slog.Logger
	checker Checker
}

// Checker проверка доступа. Не возвращает ошибок: сбой хранилища уже
// превращён в разрешение доступа внутри Check.
type Checker interface {
	Check(ctx context.Context, userID string) models.Access
}

// New создает Handler.
func New(log *slog.Logger, checker Checker) *Handler {
	return &Handler{log: log, checker: checker}
}

// ServeHTTP godoc
// @Summary Проверка доступа
// @Description Возвращает, есть ли у пользователя доступ к платным функциям, тариф и причину отказа.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Router /billing/access [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.access"

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

	render.JSON(w, r, response.StatusOKWithData(h.checker.Check(r.Context(), userID)))
}
