// Package workflowsaas собирает HTTP API: маршруты, middleware и зависимости.
package workflowsaas

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/workflow-saas/internal/config"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/account/activity"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/account/deleteaccount"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/account/export"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/account/settings"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/auth/resetconfirm"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/auth/resetrequest"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/billing/access"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/billing/subscription"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/health"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/workflow/create"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/workflow/list"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/workflow/read"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/workflow/remove"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/workflow/update"
	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/metrics"
	"github.com/magabrotheeeer/workflow-saas/internal/paymentprovider"
	accountservice "github.com/magabrotheeeer/workflow-saas/internal/services/account"
	authservice "github.com/magabrotheeeer/workflow-saas/internal/services/auth"
	billingservice "github.com/magabrotheeeer/workflow-saas/internal/services/billing"
	entitlementservice "github.com/magabrotheeeer/workflow-saas/internal/services/entitlement"
	workflowservice "github.com/magabrotheeeer/workflow-saas/internal/services/workflow"
)

// Deps зависимости маршрутов.
type Deps struct {
	Log         *slog.Logger
	Limits      config.RateLimits
	Auth        *authservice.AuthService
	Billing     *billingservice.Manager
	Reconciler  *billingservice.Reconciler
	Verifier    *paymentprovider.Verifier
	Entitlement *entitlementservice.Service
	Account     *accountservice.Service
	Workflows   *workflowservice.Service
	Store       ratelimit.Store
	Throttle    *middlewarectx.UserThrottle
	Metrics     *metrics.Metrics
	DB          health.Pinger
	Redis       health.Pinger
}

func rule(l config.Limit) ratelimit.Rule {
	return ratelimit.Rule{Limit: l.Requests, Window: l.Window}
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Log
	limited := func(op string, l config.Limit) func(next http.Handler) http.Handler {
		return middlewarectx.RateLimit(logger, d.Store, op, rule(l), d.Metrics)
	}

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middlewarectx.Recoverer(logger),
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger, d.DB, d.Redis).ServeHTTP)

		// Открытые конечные точки
		r.Route("/auth", func(r chi.Router) {
			r.With(limited("signup", d.Limits.Signup)).
				Post("/signup", signup.New(logger, d.Auth).ServeHTTP)
			r.Post("/login", login.New(logger, d.Auth).ServeHTTP)
			r.With(limited("reset_request", d.Limits.ResetRequest)).
				Post("/reset-password", resetrequest.New(logger, d.Auth).ServeHTTP)
			r.With(limited("reset_confirm", d.Limits.ResetConfirm)).
				Post("/reset-password/confirm", resetconfirm.New(logger, d.Auth).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, проверяется подпись)
		r.Post("/billing/webhook", webhook.New(logger, d.Verifier, d.Reconciler).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Auth, logger))
			r.Use(d.Throttle.Middleware)

			sub := subscription.New(logger, d.Billing)
			r.Get("/billing/subscription", sub.Get)
			r.Patch("/billing/subscription", sub.Update)
			r.Post("/billing/checkout", checkout.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/portal", portal.New(logger, d.Billing).ServeHTTP)
			r.Get("/billing/access", access.New(logger, d.Entitlement).ServeHTTP)

			st := settings.New(logger, d.Account)
			r.Delete("/account", deleteaccount.New(logger, d.Account).ServeHTTP)
			r.Get("/account/settings", st.Get)
			r.Patch("/account/settings", st.Update)
			r.With(limited("export", d.Limits.Export)).
				Get("/account/export", export.New(logger, d.Account).ServeHTTP)
			r.Get("/activity", activity.New(logger, d.Account).ServeHTTP)

			r.Get("/workflows", list.New(logger, d.Workflows).ServeHTTP)
			r.With(middlewarectx.RequireEntitlement(logger, d.Entitlement)).
				Post("/workflows", create.New(logger, d.Workflows).ServeHTTP)
			r.Get("/workflows/{id}", read.New(logger, d.Workflows).ServeHTTP)
			r.Patch("/workflows/{id}", update.New(logger, d.Workflows).ServeHTTP)
			r.Delete("/workflows/{id}", remove.New(logger, d.Workflows).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
