// Package update реализует частичное обновление рабочего процесса.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Request изменяемые поля; отсутствующие остаются прежними.
type Request struct {
	Name         *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Description  *string         `json:"description" validate:"omitempty,max=2000"`
	WorkflowJSON json.RawMessage `json:"workflow_json"`
	Status       *string         `json:"status" validate:"omitempty,oneof=draft active archived"`
}

// Handler обрабатывает запросы на обновление процесса.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики обновления.
type Service interface {
	Update(ctx context.Context, userID, id string, p models.WorkflowPatch, ip string) (*models.Workflow, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновление рабочего процесса
// @Tags Workflows
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID процесса"
// @Param request body Request true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный ID или JSON"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Процесс не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /workflows/{id} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.workflow.update"

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

	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		log.Info("invalid id format", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
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

	patch := models.WorkflowPatch{
		Name:         req.Name,
		Description:  req.Description,
		WorkflowJSON: req.WorkflowJSON,
	}
	if req.Status != nil {
		st := models.WorkflowStatus(*req.Status)
		patch.Status = &st
	}

	res, err := h.service.Update(r.Context(), userID, id, patch, ratelimit.ClientIP(r))
	if err != nil {
		log.Error("failed to update workflow", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("workflow updated", slog.String("workflow_id", id))
	render.JSON(w, r, response.StatusOKWithData(res))
}
