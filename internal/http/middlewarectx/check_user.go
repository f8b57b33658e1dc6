package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// AccessChecker определяет интерфейс проверки доступа к платным функциям.
type AccessChecker interface {
	Check(ctx context.Context, userID string) models.Access
}

// RequireEntitlement создает middleware, который пропускает запрос только
// пользователям с действующим доступом. Иначе отвечает 403 с причиной отказа.
func RequireEntitlement(log *slog.Logger, checker AccessChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireEntitlement"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userID, ok := UserIDFrom(r.Context())
			if !ok {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			access := checker.Check(r.Context(), userID)
			if !access.HasAccess {
				log.Info("access denied", slog.String("user_id", userID), slog.String("reason", access.Reason))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error(access.Reason))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
