// Package deleteaccount удаляет учётную запись пользователя вместе со всеми данными.
package deleteaccount

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
)

// Request подтверждение удаления, должно совпадать с фразой "DELETE MY ACCOUNT".
type Request struct {
	Confirm string `json:"confirm" validate:"required"`
}

// Handler обработчик удаления аккаунта.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service бизнес-логика удаления.
type Service interface {
	Delete(ctx context.Context, userID, confirm, ip string) error
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Удаление аккаунта
// @Description Планирует отмену действующей подписки у провайдера и удаляет пользователя со всеми данными.
// @Tags Account
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нет подтверждения"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /account [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.delete"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.Delete(r.Context(), userID, req.Confirm, ratelimit.ClientIP(r)); err != nil {
		log.Error("failed to delete account", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "account deleted successfully",
	}))
}
