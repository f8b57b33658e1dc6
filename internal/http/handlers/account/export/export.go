// Package export отдаёт выгрузку всех данных пользователя JSON-файлом.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Handler обработчик выгрузки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service бизнес-логика выгрузки.
type Service interface {
	Export(ctx context.Context, userID, ip string) (*models.Export, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выгрузка данных
// @Description Профиль, настройки, рабочие процессы и журнал действий одним файлом. Не чаще 3 раз в час.
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} models.Export
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /account/export [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.export"

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

	data, err := h.service.Export(r.Context(), userID, ratelimit.ClientIP(r))
	if err != nil {
		log.Error("failed to export user data", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	filename := fmt.Sprintf("workflow-export-%s.json", data.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	log.Info("user data exported", slog.String("user_id", userID), slog.Int("workflows", len(data.Workflows)))
	render.JSON(w, r, data)
}
