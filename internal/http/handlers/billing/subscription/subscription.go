// Package subscription отдаёт сводку по подписке и выполняет действия над ней:
// отмену в конце периода, немедленную отмену, возобновление и смену тарифа.
//
// Действие сначала выполняется у платёжного провайдера, затем отражается
// в локальной копии.
package subscription

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

// Request действие над подпиской.
type Request struct {
	Action     string `json:"action" validate:"required,oneof=cancel cancel_immediately reactivate change_plan"`
	NewPriceID string `json:"new_price_id"`
}

// Summary ответ GET.
type Summary struct {
	Subscription *models.Subscription `json:"subscription"`
	Plan         models.Plan          `json:"plan"`
}

// Service бизнес-логика управления подпиской.
type Service interface {
	Summary(ctx context.Context, userID string) (*models.Subscription, models.Plan, error)
	Manage(ctx context.Context, userID string, action models.SubscriptionAction, newPriceID, ip string) (*models.Subscription, error)
}

// Handler обработчики GET и PATCH подписки.
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

func (h *Handler) user(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
	}
	return userID, ok
}

// Get godoc
// @Summary Текущая подписка
// @Description Последняя подписка пользователя и вычисленный тариф. Без подписки subscription равен null, тариф free.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /billing/subscription [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.subscription.Get"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := h.user(w, r, log)
	if !ok {
		return
	}

	sub, plan, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(Summary{Subscription: sub, Plan: plan}))
}

// Update godoc
// @Summary Действие над подпиской
// @Description cancel, cancel_immediately, reactivate или change_plan (требует new_price_id).
// @Tags Billing
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Действие"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Действие невозможно"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /billing/subscription [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.subscription.Update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := h.user(w, r, log)
	if !ok {
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

	sub, err := h.service.Manage(r.Context(), userID, models.SubscriptionAction(req.Action), req.NewPriceID, ratelimit.ClientIP(r))
	if err != nil {
		log.Error("subscription action failed", slog.String("action", req.Action), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message":      "subscription updated",
		"subscription": sub,
	}))
}
