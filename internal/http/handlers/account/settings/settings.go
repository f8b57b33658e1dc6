// Package settings отдаёт и обновляет профиль и пользовательские настройки.
package settings

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
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Request частичное обновление; отсутствующие поля не меняются.
type Request struct {
	Name               *string `json:"name" validate:"omitempty,max=100"`
	Timezone           *string `json:"timezone" validate:"omitempty,min=1,max=64"`
	EmailNotifications *bool   `json:"email_notifications"`
	WeeklyDigest       *bool   `json:"weekly_digest"`
}

// View ответ с профилем и настройками.
type View struct {
	User     *models.User        `json:"user"`
	Settings models.UserSettings `json:"settings"`
}

// Service бизнес-логика настроек.
type Service interface {
	Settings(ctx context.Context, userID string) (*models.User, models.UserSettings, error)
	UpdateSettings(ctx context.Context, userID string, p models.SettingsPatch, ip string) (*models.User, models.UserSettings, error)
}

// Handler обработчики GET и PATCH настроек.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Get godoc
// @Summary Настройки аккаунта
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /account/settings [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.settings.Get"

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

	user, st, err := h.service.Settings(r.Context(), userID)
	if err != nil {
		log.Error("failed to load settings", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(View{User: user, Settings: st}))
}

// Update godoc
// @Summary Обновление настроек аккаунта
// @Tags Account
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /account/settings [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.settings.Update"

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

	user, st, err := h.service.UpdateSettings(r.Context(), userID, models.SettingsPatch{
		Name:               req.Name,
		Timezone:           req.Timezone,
		EmailNotifications: req.EmailNotifications,
		WeeklyDigest:       req.WeeklyDigest,
	}, ratelimit.ClientIP(r))
	if err != nil {
		log.Error("failed to update settings", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("settings updated", slog.String("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(View{User: user, Settings: st}))
}
