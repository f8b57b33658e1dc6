// Package webhook принимает события платёжного провайдера.
//
// Тело запроса проверяется по подписи из заголовка Stripe-Signature до
// любого разбора. Проверенное событие применяется к локальному состоянию
// подписок. Ошибка применения не меняет код ответа: провайдер получает 200,
// а событие помечается в журнале как failed.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/billingevent"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
)

// SignatureHeader заголовок с подписью провайдера.
const SignatureHeader = "Stripe-Signature"

const maxBodyBytes = 1 << 20

// Verifier проверяет подпись и достаёт конверт события.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (billingevent.Envelope, error)
}

// Service применяет проверенное событие.
type Service interface {
	Process(ctx context.Context, env billingevent.Envelope) error
}

// Handler обработчик вебхука.
type Handler struct {
	log      *slog.Logger
	verifier Verifier
	service  Service
}

// New создает Handler.
func New(log *slog.Logger, verifier Verifier, service Service) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		service:  service,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Принимает подписанное событие и синхронизирует локальное состояние подписки.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Нет подписи или подпись неверна"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		log.Warn("webhook without signature header", slog.Bool("security", true), slog.String("ip", ratelimit.ClientIP(r)))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing signature header"))
		return
	}

	env, err := h.verifier.Verify(body, signature)
	if err != nil {
		log.Warn("webhook signature verification failed",
			slog.Bool("security", true),
			slog.String("ip", ratelimit.ClientIP(r)),
			sl.Err(err),
		)
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	if err := h.service.Process(r.Context(), env); err != nil {
		log.Error("webhook processing failed", slog.String("event_id", env.ID), sl.Err(err))
		render.JSON(w, r, map[string]any{
			"received": true,
			"error":    "processing error",
		})
		return
	}

	render.JSON(w, r, map[string]any{"received": true})
}
